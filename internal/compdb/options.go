package compdb

import (
	"fmt"
	"path"
	"strings"

	"github.com/dshills/ppbridge/internal/macros"
	"github.com/dshills/ppbridge/pkg/types"
)

// UnitOptions are clang-style settings for preprocessing a single file
type UnitOptions struct {
	File           string
	Language       string // inferred from the file extension when empty
	Std            string // -std value, e.g. c11 or gnu++17
	UserIncludes   []string
	SystemIncludes []string
	Forced         []string
	Defines        []string // NAME or NAME=VALUE
	// Builtins are the compiler's predefined macros
	Builtins []string
}

var stdFlavors = map[string]Flavor{
	"c89":   FlavorC89,
	"c90":   FlavorC89,
	"c99":   FlavorC99,
	"c11":   FlavorC11,
	"c17":   FlavorC11,
	"c++98": FlavorCPP98,
	"c++03": FlavorCPP98,
	"c++11": FlavorCPP11,
	"c++14": FlavorCPP14,
	"c++17": FlavorCPP17,
}

// FlavorForStd maps a -std value to a flavor. GNU variants map like their
// ISO counterparts; an empty value is FlavorUnknown.
func FlavorForStd(std string) (Flavor, error) {
	s := strings.ToLower(strings.TrimSpace(std))
	if s == "" {
		return FlavorUnknown, nil
	}
	if rest, ok := strings.CutPrefix(s, "gnu"); ok {
		s = "c" + rest
	}
	f, ok := stdFlavors[s]
	if !ok {
		return FlavorUnknown, fmt.Errorf("%w: -std=%s", types.ErrUnknownFlavor, std)
	}
	return f, nil
}

// NewProjectHandler assembles a handler from unit options
func NewProjectHandler(o UnitOptions) (*ProjectHandler, error) {
	if o.File == "" {
		return nil, fmt.Errorf("%w: file is required", types.ErrInvalidArgument)
	}
	lang := o.Language
	if lang == "" {
		lang = "C++"
		if strings.ToLower(path.Ext(o.File)) == ".c" {
			lang = "C"
		}
	}
	if _, err := ParseLanguage(lang); err != nil {
		return nil, err
	}
	flavor, err := FlavorForStd(o.Std)
	if err != nil {
		return nil, err
	}
	h := &ProjectHandler{
		File:           o.File,
		Lang:           lang,
		UserIncludes:   Paths(o.UserIncludes...),
		SystemIncludes: Paths(o.SystemIncludes...),
		Forced:         o.Forced,
		MacroTable:     macros.NewFileTable(macros.NewTable(o.Builtins), o.Defines),
	}
	if flavor != FlavorUnknown {
		h.LangFlavor = flavor.String()
	}
	return h, nil
}
