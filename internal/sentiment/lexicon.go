package sentiment

// lexicon maps lowercase terms to valence in [-5, 5], AFINN style.
// Scoring is a pure lookup over this table so results are stable across
// releases; extend it, never rescore stored messages.
var lexicon = map[string]int{
	"abandon":      -2,
	"abuse":        -3,
	"accomplish":   2,
	"achieve":      2,
	"admire":       3,
	"adopt":        1,
	"amazing":      4,
	"angry":        -3,
	"annoying":     -2,
	"awesome":      4,
	"awful":        -3,
	"bad":          -3,
	"bearish":      -2,
	"beautiful":    3,
	"benefit":      2,
	"best":         3,
	"blocked":      -1,
	"boring":       -3,
	"breakthrough": 3,
	"broken":       -1,
	"bullish":      2,
	"calm":         2,
	"cancel":       -1,
	"celebrate":    3,
	"cheat":        -3,
	"clean":        2,
	"collapse":     -2,
	"confident":    2,
	"confused":     -2,
	"congrats":     2,
	"cool":         1,
	"crash":        -2,
	"cry":          -1,
	"damage":       -3,
	"dead":         -3,
	"delay":        -1,
	"delighted":    3,
	"disappointed": -2,
	"disaster":     -2,
	"dislike":      -2,
	"doubt":        -1,
	"dump":         -1,
	"easy":         1,
	"enjoy":        2,
	"epic":         2,
	"error":        -2,
	"excellent":    3,
	"excited":      3,
	"fail":         -2,
	"failure":      -2,
	"fake":         -3,
	"fantastic":    4,
	"fear":         -2,
	"fine":         2,
	"fraud":        -4,
	"free":         1,
	"fun":          4,
	"glad":         3,
	"good":         3,
	"great":        3,
	"grow":         1,
	"happy":        3,
	"hate":         -3,
	"heal":         2,
	"hope":         2,
	"horrible":     -3,
	"hurt":         -2,
	"improve":      2,
	"incredible":   4,
	"interesting":  2,
	"kill":         -3,
	"lame":         -2,
	"launch":       1,
	"lose":         -3,
	"loss":         -3,
	"love":         3,
	"lucky":        3,
	"mad":          -3,
	"miss":         -1,
	"mistake":      -2,
	"moon":         1,
	"nice":         3,
	"noisy":        -1,
	"panic":        -3,
	"perfect":      3,
	"please":       1,
	"poor":         -2,
	"positive":     2,
	"problem":      -2,
	"profit":       2,
	"progress":     2,
	"promise":      1,
	"pump":         1,
	"reject":       -1,
	"rich":         2,
	"rise":         1,
	"risk":         -2,
	"sad":          -2,
	"scam":         -2,
	"scared":       -2,
	"sell":         -1,
	"share":        1,
	"shit":         -4,
	"smart":        1,
	"solid":        2,
	"sorry":        -1,
	"stuck":        -2,
	"stupid":       -2,
	"success":      2,
	"super":        3,
	"support":      2,
	"terrible":     -3,
	"thanks":       2,
	"top":          2,
	"toxic":        -3,
	"trust":        1,
	"ugly":         -3,
	"useful":       2,
	"useless":      -2,
	"wait":         -1,
	"warning":      -3,
	"weak":         -2,
	"welcome":      2,
	"win":          4,
	"winner":       4,
	"wonderful":    4,
	"worry":        -3,
	"worst":        -3,
	"wow":          4,
	"wrong":        -2,
}
