package arabic

import "strings"

// slot is one output position during reshaping: a rune plus the contextual
// form assigned to it, or -1 when the rune is not a joining letter.
type slot struct {
	r    rune
	form int
}

// reshapeLine substitutes every Arabic letter in a single line with its
// contextual presentation form and folds lam-alef pairs into ligatures.
// Harakat never take part in joining; they are held aside and reattached
// after the letter they followed, or dropped when deleteHarakat is set.
func reshapeLine(line string, deleteHarakat bool) string {
	var out []slot
	marks := make(map[int][]rune)

	for _, r := range line {
		if isHarakat(r) {
			if !deleteHarakat {
				i := len(out) - 1
				marks[i] = append(marks[i], r)
			}
			continue
		}
		_, isLetter := letterForms[r]
		switch {
		case !isLetter:
			out = append(out, slot{r, -1})
		case len(out) == 0:
			out = append(out, slot{r, formIsolated})
		default:
			prev := &out[len(out)-1]
			switch {
			case prev.form < 0,
				!connectsBefore(r),
				!connectsAfter(prev.r),
				prev.form == formFinal && !connectsBoth(prev.r):
				out = append(out, slot{r, formIsolated})
			case prev.form == formIsolated:
				prev.form = formInitial
				out = append(out, slot{r, formFinal})
			default:
				prev.form = formMedial
				out = append(out, slot{r, formFinal})
			}
		}

		// A lam that just took its initial or medial form followed by an
		// alef variant collapses into the ligature: isolated when nothing
		// joined before the lam, final otherwise.
		if n := len(out); n >= 2 && out[n-2].r == lam {
			lig, ok := lamAlef[out[n-1].r]
			if ok && (out[n-2].form == formInitial || out[n-2].form == formMedial) {
				folded := slot{lig[0], -1}
				if out[n-2].form == formMedial {
					folded.r = lig[1]
				}
				if ms := marks[n-1]; len(ms) > 0 {
					marks[n-2] = append(marks[n-2], ms...)
					delete(marks, n-1)
				}
				out = out[:n-1]
				out[n-2] = folded
			}
		}
	}

	var b strings.Builder
	b.Grow(len(line))
	for _, m := range marks[-1] {
		b.WriteRune(m)
	}
	for i, s := range out {
		if s.r != zwj {
			if forms, ok := letterForms[s.r]; ok && s.form >= 0 {
				g := forms[s.form]
				if g == 0 {
					g = forms[formIsolated]
				}
				b.WriteRune(g)
			} else {
				b.WriteRune(s.r)
			}
		}
		for _, m := range marks[i] {
			b.WriteRune(m)
		}
	}
	return b.String()
}
