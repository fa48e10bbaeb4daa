package entrypoint

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/wrouesnel/makepki/pkg/models"
	"github.com/wrouesnel/makepki/pkg/recipe"
)

var ErrInvalidFlagValue = errors.New("invalid boolean flag value")

// OrderedSelectors returns the operation flags in the order they appear in
// args. A repeated flag is returned once per occurrence. Flag definitions come
// from the parsed kong context so values of other flags are skipped. An
// operation flag given an explicit value, as in --root=false, counts only when
// the value is true.
func OrderedSelectors(kongCtx *kong.Context, args []string) ([]models.Selector, error) {
	long := map[string]*kong.Flag{}
	short := map[rune]*kong.Flag{}
	for _, flag := range kongCtx.Flags() {
		long[flag.Name] = flag
		if flag.Short != 0 {
			short[flag.Short] = flag
		}
	}

	selectors := []models.Selector{}
	addIfSelector := func(name string) {
		if s := models.Selector(name); s.IsValid() {
			selectors = append(selectors, s)
		}
	}

	for idx := 0; idx < len(args); idx++ {
		arg := args[idx]
		switch {
		case arg == "--":
			return selectors, nil
		case strings.HasPrefix(arg, "--"):
			name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
			flag, found := long[name]
			if !found {
				continue
			}
			if !hasValue && !flag.IsBool() {
				// The value is the next argument.
				idx++
				continue
			}
			if hasValue && flag.IsBool() {
				enabled, err := strconv.ParseBool(value)
				if err != nil {
					return nil, errors.Wrapf(ErrInvalidFlagValue, "--%s=%s", name, value)
				}
				if !enabled {
					continue
				}
			}
			addIfSelector(flag.Name)
		case strings.HasPrefix(arg, "-") && len(arg) > 1:
			// Short flags may be combined, as in -rin.
			for pos, r := range strings.TrimPrefix(arg, "-") {
				flag, found := short[r]
				if !found {
					break
				}
				if !flag.IsBool() {
					// The rest of the argument, or the next one, is the value.
					if pos == len(arg)-2 {
						idx++
					}
					break
				}
				addIfSelector(flag.Name)
			}
		}
	}
	return selectors, nil
}

// validateSelectors checks there is something to do and that the variant
// supports every requested operation.
func validateSelectors(variant models.Variant, selectors []models.Selector) error {
	if len(selectors) == 0 {
		return ErrNoOperation
	}
	unsupported := lo.Filter(lo.Uniq(selectors), func(item models.Selector, _ int) bool {
		return !recipe.Supports(variant, item)
	})
	if len(unsupported) > 0 {
		return errors.Wrap(recipe.ErrUnsupportedSelector,
			fmt.Sprintf("--%s with --variant=%s", strings.Join(lo.Map(unsupported, func(item models.Selector, _ int) string {
				return item.String()
			}), ", --"), variant))
	}
	return nil
}
