package entrypoint

import (
	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"github.com/wrouesnel/makepki/pkg/models"
	"github.com/wrouesnel/makepki/pkg/recipe"

	. "gopkg.in/check.v1"
)

type SelectorSuite struct{}

var _ = Suite(&SelectorSuite{})

func (s *SelectorSuite) parse(c *C, args ...string) []models.Selector {
	var cli CLIConfig
	parser, err := kong.New(&cli, kong.Vars{
		"variants":        "hierarchy,selfsigned",
		"passphrasemodes": "env,fd,arg",
		"failurepolicies": "continue,abort",
	})
	c.Assert(err, IsNil)
	kongCtx, err := parser.Parse(args)
	c.Assert(err, IsNil)
	selectors, err := OrderedSelectors(kongCtx, args)
	c.Assert(err, IsNil)
	return selectors
}

func (s *SelectorSuite) TestOrder(c *C) {
	c.Assert(s.parse(c, "--variant", "selfsigned", "--node", "-r", "--log-level=debug"), DeepEquals,
		[]models.Selector{models.SelectorNode, models.SelectorRoot})
	c.Assert(s.parse(c, "-ni", "--init", "--root"), DeepEquals,
		[]models.Selector{models.SelectorNode, models.SelectorIntermediate, models.SelectorInit, models.SelectorRoot})
	c.Assert(s.parse(c, "-r", "--root"), DeepEquals,
		[]models.Selector{models.SelectorRoot, models.SelectorRoot})
	c.Assert(s.parse(c, "--dry-run"), HasLen, 0)
}

func (s *SelectorSuite) TestExplicitValues(c *C) {
	c.Assert(s.parse(c, "--root=false", "--node=true"), DeepEquals,
		[]models.Selector{models.SelectorNode})
	c.Assert(s.parse(c, "--intermediate=1", "--init=0"), DeepEquals,
		[]models.Selector{models.SelectorIntermediate})
	c.Assert(s.parse(c, "--root=false"), HasLen, 0)
}

func (s *SelectorSuite) TestValidate(c *C) {
	c.Assert(errors.Is(validateSelectors(models.VariantHierarchy, nil), ErrNoOperation), Equals, true)
	c.Assert(validateSelectors(models.VariantHierarchy, []models.Selector{models.SelectorIntermediate}), IsNil)

	err := validateSelectors(models.VariantSelfSigned, []models.Selector{models.SelectorRoot, models.SelectorIntermediate})
	c.Assert(errors.Is(err, recipe.ErrUnsupportedSelector), Equals, true)
	c.Assert(err, ErrorMatches, ".*--intermediate with --variant=selfsigned.*")
}
