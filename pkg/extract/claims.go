package extract

// defaultClaimTypes is the built-in claim/violation dictionary, scanned in
// order against document text. Longer phrases come before the single-word
// claims they contain.
var defaultClaimTypes = []string{
	"breach of contract",
	"breach of fiduciary duty",
	"negligent misrepresentation",
	"intentional infliction of emotional distress",
	"wrongful termination",
	"unjust enrichment",
	"products liability",
	"premises liability",
	"medical malpractice",
	"trade secret misappropriation",
	"copyright infringement",
	"trademark infringement",
	"patent infringement",
	"unfair competition",
	"false advertising",
	"securities fraud",
	"wire fraud",
	"negligence",
	"fraud",
	"defamation",
	"conversion",
	"discrimination",
	"harassment",
	"retaliation",
	"nuisance",
	"trespass",
	"battery",
	"assault",
}
