package mapping

import "github.com/ppiankov/codemeta2mp/internal/model"

// Vocabulary namespaces on the Marketplace side
const (
	NamespaceLifeCycle      = "https://vocabs.sshopencloud.eu/vocabularies/eosc-life-cycle-status/"
	NamespaceReadinessLevel = "https://vocabs.sshopencloud.eu/vocabularies/eosc-technology-readiness-level/"
	NamespaceInvocationType = "https://vocabs.sshopencloud.eu/vocabularies/invocation-type/"
	NamespaceISO6393        = "https://vocabs.acdh.oeaw.ac.at/iso6393/"
)

// Vocabulary namespaces on the CodeMeta side
const (
	NamespaceTaDiRAH    = "https://vocabs.dariah.eu/tadirah/"
	NamespaceRepoStatus = "https://www.repostatus.org/#"
	NamespaceTRL        = "https://w3id.org/research-technology-readiness-levels#"
	NamespaceSIL6393    = "https://iso639-3.sil.org/code/"
)

// SoftwareTypes maps schema.org and software-types classes to invocation-type codes.
// Several entries are approximations where SSHOC has no exact counterpart.
var SoftwareTypes = map[string]string{
	"WebApplication":         "webApplication",
	"DesktopApplication":     "localApplication",
	"WebAPI":                 "restfulWebservice", // not necessarily RESTful
	"SoftwareLibrary":        "library",
	"CommandLineApplication": "commandLine",
	"MobileApplication":      "localApplication",
	"NotebookApplication":    "script",
	"SoftwareImage":          "localApplication",
	"SoftwarePackage":        "localApplication",
	"VideoGame":              "localApplication",
	"TerminalApplication":    "commandLine", // no TUI equivalent
	"ServerApplication":      "webApplication",
}

// Development status tokens (repostatus.org)
const (
	StatusConcept     = "concept"
	StatusWIP         = "wip"
	StatusSuspended   = "suspended"
	StatusAbandoned   = "abandoned"
	StatusActive      = "active"
	StatusInactive    = "inactive"
	StatusUnsupported = "unsupported"
	StatusMoved       = "moved"
)

var repoStatuses = map[string]bool{
	StatusConcept: true, StatusWIP: true, StatusSuspended: true, StatusAbandoned: true,
	StatusActive: true, StatusInactive: true, StatusUnsupported: true, StatusMoved: true,
}

// readinessLevels names the TRL vocabulary levels
var readinessLevels = map[string]int{
	"Level0Idea":                    0,
	"Level1InitialResearch":         1,
	"Level2ConceptFormulated":       2,
	"Level3ProofOfConcept":          3,
	"Level4ValidatedProofOfConcept": 4,
	"Level5EarlyPrototype":          5,
	"Level6LatePrototype":           6,
	"Level7ReleaseCandidate":        7,
	"Level8Complete":                8,
	"Level9Proven":                  9,
}

// readinessStages are coarse TRL stages, treated as statuses by the lifecycle table
var readinessStages = map[string]bool{
	"Stage1Planning":       true,
	"Stage2ProofOfConcept": true,
	"Stage3Experimental":   true,
	"Stage4Complete":       true,
}

// Lifecycle status codes
const (
	LifeCyclePreparation = "life_cycle_status-preparation"
	LifeCyclePlanned     = "life_cycle_status-planned"
	LifeCycleConcept     = "life_cycle_status-concept"
	LifeCycleDesign      = "life_cycle_status-design"
	LifeCycleAlpha       = "life_cycle_status-alpha"
	LifeCycleBeta        = "life_cycle_status-beta"
	LifeCycleProduction  = "life_cycle_status-production"
	LifeCycleTermination = "life_cycle_status-termination"
)

// LevelRange is an inclusive range of rescaled readiness levels.
// Level 0 stands for "no readiness level known".
type LevelRange struct {
	Min, Max int
}

// Contains reports whether the level falls in the range
func (r LevelRange) Contains(level int) bool {
	return level >= r.Min && level <= r.Max
}

var (
	AnyLevel = LevelRange{0, 9}
	NoLevel  = LevelRange{0, 0}
)

// AnyStatus matches every status, including none
const AnyStatus = "*"

// LifecycleRule derives a lifecycle status from a development status and a level bucket
type LifecycleRule struct {
	Status    string
	Levels    LevelRange
	LifeCycle string
}

// LifecycleTable is evaluated top to bottom; the first matching row wins
var LifecycleTable = []LifecycleRule{
	{Status: StatusAbandoned, Levels: AnyLevel, LifeCycle: LifeCycleTermination},

	{Status: AnyStatus, Levels: LevelRange{1, 1}, LifeCycle: LifeCyclePreparation},
	{Status: AnyStatus, Levels: LevelRange{2, 2}, LifeCycle: LifeCyclePlanned},
	{Status: AnyStatus, Levels: LevelRange{3, 3}, LifeCycle: LifeCycleConcept},
	{Status: AnyStatus, Levels: LevelRange{4, 4}, LifeCycle: LifeCycleDesign},
	{Status: AnyStatus, Levels: LevelRange{5, 5}, LifeCycle: LifeCycleAlpha},
	{Status: AnyStatus, Levels: LevelRange{6, 7}, LifeCycle: LifeCycleBeta},
	{Status: AnyStatus, Levels: LevelRange{8, 9}, LifeCycle: LifeCycleProduction},

	{Status: "Stage1Planning", Levels: NoLevel, LifeCycle: LifeCyclePreparation},
	{Status: "Stage2ProofOfConcept", Levels: NoLevel, LifeCycle: LifeCycleConcept},
	{Status: "Stage3Experimental", Levels: NoLevel, LifeCycle: LifeCycleBeta},
	{Status: "Stage4Complete", Levels: NoLevel, LifeCycle: LifeCycleProduction},

	{Status: StatusWIP, Levels: NoLevel, LifeCycle: LifeCycleConcept},
	{Status: StatusConcept, Levels: NoLevel, LifeCycle: LifeCycleConcept},
}

// RepositoryService maps a source code hosting prefix to its identifier service
type RepositoryService struct {
	Prefix  string
	Service model.IdentifierService
}

// RepositoryServices lists the code hosts recognised in codeRepository
var RepositoryServices = []RepositoryService{
	{"https://github.com/", service("GitHub", "GitHub", "https://github.com/{source-item-id}")},
	{"https://gitlab.com/", service("GitLab", "GitLab", "https://gitlab.com/{source-item-id}")},
	{"https://bitbucket.org/", service("Bitbucket", "Bitbucket", "https://bitbucket.org/{source-item-id}")},
	{"https://codeberg.org/", service("Codeberg", "Codeberg", "https://codeberg.org/{source-item-id}")},
	{"https://git.sr.ht/", service("sourcehut", "sourcehut", "https://git.sr.ht/{source-item-id}")},
}

// Identifier services for tool and actor identifiers
var (
	ServiceClariah = service("CLARIAH-NL", "CLARIAH Tools", "https://tools.clariah.nl/{source-item-id}")
	ServiceDOI     = service("DOI", "DOI", "https://doi.org/{source-item-id}")
	ServiceORCID   = service("ORCID", "ORCID", "https://orcid.org/{source-item-id}")
)

const (
	clariahPrefix = "https://tools.clariah.nl/"
	orcidPrefix   = "https://orcid.org/"
)

// actorRoles lists contributor roles in output order
var actorRoles = []struct {
	Property string
	Role     model.Role
}{
	{"maintainer", model.Role{Code: "maintainer", Label: "Maintainer"}},
	{"author", model.Role{Code: "author", Label: "Author"}},
	{"contributor", model.Role{Code: "contributor", Label: "Contributor"}},
}

func service(code, label, tmpl string) model.IdentifierService {
	return model.IdentifierService{Code: code, Label: label, URLTemplate: tmpl}
}
