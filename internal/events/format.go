package events

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// EmQuad separates a label from its values.
const EmQuad = "\u2001"

var (
	frenchDays   = [...]string{"Dimanche", "Lundi", "Mardi", "Mercredi", "Jeudi", "Vendredi", "Samedi"}
	frenchMonths = [...]string{"Janvier", "Février", "Mars", "Avril", "Mai", "Juin", "Juillet", "Août", "Septembre", "Octobre", "Novembre", "Décembre"}
)

// FormatDate renders t the way event titles show it: "Mardi 05 Mars 20h45".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%s %02d %s %02dh%02d",
		frenchDays[t.Weekday()], t.Day(), frenchMonths[t.Month()-1], t.Hour(), t.Minute())
}

// formatObjective decorates value by comparing n with objective:
// underlined when they differ, italic below, bold otherwise.
func formatObjective(value any, n, objective int) string {
	s := fmt.Sprint(value)
	if n != objective {
		s = "__" + s + "__"
	}
	if n < objective {
		return "*" + s + "*"
	}
	return "**" + s + "**"
}

func formatList(items []string) string {
	return strings.Join(items, ", ")
}

var foldCase = cases.Fold()

// fold strips marks, symbols and punctuation and folds case so player
// names compare the way people type them.
func fold(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.Predicate(func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})),
		norm.NFC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return foldCase.String(out)
}

// namePrefix reports whether typed starts one of names, ignoring accents,
// case and punctuation.
func namePrefix(typed string, names ...string) bool {
	want := fold(typed)
	if want == "" {
		return false
	}
	for _, name := range names {
		if strings.HasPrefix(fold(name), want) {
			return true
		}
	}
	return false
}
