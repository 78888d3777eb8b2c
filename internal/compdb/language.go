package compdb

import (
	"fmt"
	"path"
	"strings"

	"github.com/dshills/ppbridge/pkg/types"
)

// Language is the source language declared by a preprocessor handler
type Language int

const (
	LangC Language = iota
	LangCPP
	// LangFortran is routed through the C++ front end
	LangFortran
)

func (l Language) String() string {
	switch l {
	case LangC:
		return "C"
	case LangCPP:
		return "C++"
	case LangFortran:
		return "Fortran"
	default:
		return fmt.Sprintf("Language(%d)", int(l))
	}
}

// ParseLanguage decodes a declared language. The language is required, so an
// unrecognized name is an error wrapping types.ErrUnknownLanguage.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "C":
		return LangC, nil
	case "C++", "CPP", "CXX":
		return LangCPP, nil
	case "FORTRAN", "F", "F77", "F90", "F95":
		return LangFortran, nil
	default:
		return LangC, fmt.Errorf("%w: %q", types.ErrUnknownLanguage, s)
	}
}

// Kind is the language the front end is driven with
type Kind int

const (
	KindC Kind = iota
	KindCPP
)

func (k Kind) String() string {
	if k == KindCPP {
		return "c++"
	}
	return "c"
}

// Flavor is the closed set of language flavors a handler may declare
type Flavor int

const (
	FlavorUnknown Flavor = iota
	FlavorC
	FlavorC89
	FlavorC99
	FlavorCPP98
	FlavorCPP11
	FlavorF77
	FlavorF90
	FlavorF95
	FlavorDefault
	FlavorC11
	FlavorCPP14
	FlavorCPP17
)

var flavorNames = [...]string{
	FlavorUnknown: "UNKNOWN",
	FlavorC:       "C",
	FlavorC89:     "C89",
	FlavorC99:     "C99",
	FlavorCPP98:   "CPP98",
	FlavorCPP11:   "CPP11",
	FlavorF77:     "F77",
	FlavorF90:     "F90",
	FlavorF95:     "F95",
	FlavorDefault: "DEFAULT",
	FlavorC11:     "C11",
	FlavorCPP14:   "CPP14",
	FlavorCPP17:   "CPP17",
}

// ParseFlavor decodes a flavor name. The flavor is optional: an empty string
// is FlavorUnknown. A non-empty name outside the closed set means the two
// subsystems disagree on the enumeration and is reported as an error wrapping
// types.ErrUnknownFlavor.
func ParseFlavor(s string) (Flavor, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return FlavorUnknown, nil
	}
	for f, name := range flavorNames {
		if name == s {
			return Flavor(f), nil
		}
	}
	return FlavorUnknown, fmt.Errorf("%w: %q", types.ErrUnknownFlavor, s)
}

func (f Flavor) String() string {
	if f >= 0 && int(f) < len(flavorNames) {
		return flavorNames[f]
	}
	return fmt.Sprintf("Flavor(%d)", int(f))
}

// Dialect is the language standard handed to the front end
type Dialect int

const (
	// DialectUnspecified leaves the choice to the front end
	DialectUnspecified Dialect = iota
	DialectC89
	DialectC99
	DialectC11
	DialectCPP03
	DialectCPP11
	DialectCPP14
	DialectCPP17
	// DialectFortranCompat is the degraded dialect used for Fortran sources
	DialectFortranCompat
)

// DialectFor maps a flavor to its dialect
func DialectFor(f Flavor) Dialect {
	switch f {
	case FlavorC, FlavorC89:
		return DialectC89
	case FlavorC99:
		return DialectC99
	case FlavorC11:
		return DialectC11
	case FlavorCPP98:
		return DialectCPP03
	case FlavorCPP11:
		return DialectCPP11
	case FlavorCPP14:
		return DialectCPP14
	case FlavorCPP17:
		return DialectCPP17
	case FlavorF77, FlavorF90, FlavorF95:
		return DialectFortranCompat
	default:
		return DialectUnspecified
	}
}

// IsC reports whether the dialect is a C standard
func (d Dialect) IsC() bool {
	return d == DialectC89 || d == DialectC99 || d == DialectC11
}

// Std returns the -std= value of the dialect, empty when unspecified
func (d Dialect) Std() string {
	switch d {
	case DialectC89:
		return "c89"
	case DialectC99:
		return "c99"
	case DialectC11:
		return "c11"
	case DialectCPP03:
		return "c++03"
	case DialectCPP11:
		return "c++11"
	case DialectCPP14:
		return "c++14"
	case DialectCPP17:
		return "c++17"
	case DialectFortranCompat:
		return "c++98"
	default:
		return ""
	}
}

func (d Dialect) String() string {
	if s := d.Std(); s != "" {
		return s
	}
	return "default"
}

var headerExtensions = map[string]bool{
	".h": true, ".hh": true, ".hpp": true, ".hxx": true, ".h++": true, ".inl": true, ".tcc": true,
}

// IsHeaderFile reports whether p names a header by its extension
func IsHeaderFile(p string) bool {
	return headerExtensions[strings.ToLower(path.Ext(p))]
}
