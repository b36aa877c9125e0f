package arabic

// Contextual form slots for a letter, indexed into letterForms entries.
const (
	formIsolated = iota
	formInitial
	formMedial
	formFinal
)

const (
	zwj     = 0x200D
	tatweel = 0x0640
	lam     = 0x0644
)

// letterForms maps each joining letter to its presentation forms in
// [isolated, initial, medial, final] order. A zero entry means the letter
// has no such form: right-joining letters like alef carry only isolated
// and final forms.
var letterForms = map[rune][4]rune{
	0x0621: {0xFE80, 0, 0, 0},                // hamza
	0x0622: {0xFE81, 0, 0, 0xFE82},           // alef with madda
	0x0623: {0xFE83, 0, 0, 0xFE84},           // alef with hamza above
	0x0624: {0xFE85, 0, 0, 0xFE86},           // waw with hamza
	0x0625: {0xFE87, 0, 0, 0xFE88},           // alef with hamza below
	0x0626: {0xFE89, 0xFE8B, 0xFE8C, 0xFE8A}, // yeh with hamza
	0x0627: {0xFE8D, 0, 0, 0xFE8E},           // alef
	0x0628: {0xFE8F, 0xFE91, 0xFE92, 0xFE90}, // beh
	0x0629: {0xFE93, 0, 0, 0xFE94},           // teh marbuta
	0x062A: {0xFE95, 0xFE97, 0xFE98, 0xFE96}, // teh
	0x062B: {0xFE99, 0xFE9B, 0xFE9C, 0xFE9A}, // theh
	0x062C: {0xFE9D, 0xFE9F, 0xFEA0, 0xFE9E}, // jeem
	0x062D: {0xFEA1, 0xFEA3, 0xFEA4, 0xFEA2}, // hah
	0x062E: {0xFEA5, 0xFEA7, 0xFEA8, 0xFEA6}, // khah
	0x062F: {0xFEA9, 0, 0, 0xFEAA},           // dal
	0x0630: {0xFEAB, 0, 0, 0xFEAC},           // thal
	0x0631: {0xFEAD, 0, 0, 0xFEAE},           // reh
	0x0632: {0xFEAF, 0, 0, 0xFEB0},           // zain
	0x0633: {0xFEB1, 0xFEB3, 0xFEB4, 0xFEB2}, // seen
	0x0634: {0xFEB5, 0xFEB7, 0xFEB8, 0xFEB6}, // sheen
	0x0635: {0xFEB9, 0xFEBB, 0xFEBC, 0xFEBA}, // sad
	0x0636: {0xFEBD, 0xFEBF, 0xFEC0, 0xFEBE}, // dad
	0x0637: {0xFEC1, 0xFEC3, 0xFEC4, 0xFEC2}, // tah
	0x0638: {0xFEC5, 0xFEC7, 0xFEC8, 0xFEC6}, // zah
	0x0639: {0xFEC9, 0xFECB, 0xFECC, 0xFECA}, // ain
	0x063A: {0xFECD, 0xFECF, 0xFED0, 0xFECE}, // ghain
	0x0641: {0xFED1, 0xFED3, 0xFED4, 0xFED2}, // feh
	0x0642: {0xFED5, 0xFED7, 0xFED8, 0xFED6}, // qaf
	0x0643: {0xFED9, 0xFEDB, 0xFEDC, 0xFEDA}, // kaf
	0x0644: {0xFEDD, 0xFEDF, 0xFEE0, 0xFEDE}, // lam
	0x0645: {0xFEE1, 0xFEE3, 0xFEE4, 0xFEE2}, // meem
	0x0646: {0xFEE5, 0xFEE7, 0xFEE8, 0xFEE6}, // noon
	0x0647: {0xFEE9, 0xFEEB, 0xFEEC, 0xFEEA}, // heh
	0x0648: {0xFEED, 0, 0, 0xFEEE},           // waw
	0x0649: {0xFEEF, 0, 0, 0xFEF0},           // alef maksura
	0x064A: {0xFEF1, 0xFEF3, 0xFEF4, 0xFEF2}, // yeh

	// Extended letters common in Persian and Urdu subtitles.
	0x0671: {0xFB50, 0, 0, 0xFB51},           // alef wasla
	0x0679: {0xFB66, 0xFB68, 0xFB69, 0xFB67}, // tteh
	0x067E: {0xFB56, 0xFB58, 0xFB59, 0xFB57}, // peh
	0x0686: {0xFB7A, 0xFB7C, 0xFB7D, 0xFB7B}, // tcheh
	0x0688: {0xFB88, 0, 0, 0xFB89},           // ddal
	0x0691: {0xFB8C, 0, 0, 0xFB8D},           // rreh
	0x0698: {0xFB8A, 0, 0, 0xFB8B},           // jeh
	0x06A9: {0xFB8E, 0xFB90, 0xFB91, 0xFB8F}, // keheh
	0x06AF: {0xFB92, 0xFB94, 0xFB95, 0xFB93}, // gaf
	0x06BA: {0xFB9E, 0, 0, 0xFB9F},           // noon ghunna
	0x06BE: {0xFBAA, 0xFBAC, 0xFBAD, 0xFBAB}, // heh doachashmee
	0x06C1: {0xFBA6, 0xFBA8, 0xFBA9, 0xFBA7}, // heh goal
	0x06CC: {0xFBFC, 0xFBFE, 0xFBFF, 0xFBFD}, // farsi yeh
	0x06D2: {0xFBAE, 0, 0, 0xFBAF},           // yeh barree

	// Tatweel and the zero width joiner connect on both sides. ZWJ slots
	// are dropped again after forms are assigned.
	tatweel: {tatweel, tatweel, tatweel, tatweel},
	zwj:     {zwj, zwj, zwj, zwj},
}

// lamAlef maps alef variants to the [isolated, final] forms of their
// lam-alef ligature.
var lamAlef = map[rune][2]rune{
	0x0622: {0xFEF5, 0xFEF6},
	0x0623: {0xFEF7, 0xFEF8},
	0x0625: {0xFEF9, 0xFEFA},
	0x0627: {0xFEFB, 0xFEFC},
}

// isHarakat reports whether r is a combining mark that rides on a base
// letter without affecting joining.
func isHarakat(r rune) bool {
	switch {
	case r >= 0x0610 && r <= 0x061A:
	case r >= 0x064B && r <= 0x065F:
	case r == 0x0670:
	case r >= 0x06D6 && r <= 0x06DC:
	case r >= 0x06DF && r <= 0x06E8:
	case r >= 0x06EA && r <= 0x06ED:
	case r >= 0x08D3 && r <= 0x08FF:
	default:
		return false
	}
	return true
}

func connectsBefore(r rune) bool {
	f, ok := letterForms[r]
	return ok && (f[formFinal] != 0 || f[formMedial] != 0)
}

func connectsAfter(r rune) bool {
	f, ok := letterForms[r]
	return ok && (f[formInitial] != 0 || f[formMedial] != 0)
}

func connectsBoth(r rune) bool {
	f, ok := letterForms[r]
	return ok && f[formMedial] != 0
}
