// Package editor interprets one line of free text as a site administration command.
package editor

import (
	"context"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/session"
	"github.com/trezcool/academia/core/settings"
	"github.com/trezcool/academia/core/student"
)

// Outcome tells how a command was handled.
type Outcome string

const (
	OutcomeNoMatch            Outcome = "no_match"
	OutcomeNeedsClarification Outcome = "needs_clarification"
	OutcomeApplied            Outcome = "applied"
	OutcomeAnswered           Outcome = "answered"
	OutcomeFailed             Outcome = "failed"
)

// change kinds
const (
	KindSettings = "settings"
	KindSession  = "session"
	KindStudent  = "student"
)

// Change describes one state mutation requested by a command.
// Applied is false when the mutation failed or requires a manual follow-up.
type Change struct {
	Kind        string      `json:"kind"`
	Description string      `json:"description"`
	Applied     bool        `json:"applied"`
	Data        interface{} `json:"data,omitempty"`
}

type Result struct {
	Reply   string   `json:"reply"`
	Outcome Outcome  `json:"outcome"`
	Rule    string   `json:"rule,omitempty"`
	Changes []Change `json:"changes"`
}

// input is the command text, as typed and lower-cased.
type input struct {
	text  string
	lower string
}

func (in input) has(words ...string) bool {
	for _, w := range words {
		if strings.Contains(in.lower, w) {
			return true
		}
	}
	return false
}

// rule handles the commands its keyword predicate matches.
type rule struct {
	name   string
	match  func(in input) bool
	handle func(ctx context.Context, ed *Editor, in input) Result
}

type Editor struct {
	settings *settings.Service
	sessions *session.Service
	students *student.Service
	log      core.Logger
	rules    []rule
}

func New(settingsSvc *settings.Service, sessionSvc *session.Service, studentSvc *student.Service, logger core.Logger) *Editor {
	return &Editor{
		settings: settingsSvc,
		sessions: sessionSvc,
		students: studentSvc,
		log:      logger,
		rules:    rules,
	}
}

// Process runs the first rule whose keywords match the text.
// A matched rule never falls through to the next ones, even when it cannot extract its parameters:
// it asks for clarification instead.
func (ed *Editor) Process(ctx context.Context, text string) Result {
	in := input{text: core.CleanString(text)}
	in.lower = strings.ToLower(in.text)

	if in.text != "" {
		for _, r := range ed.rules {
			if !r.match(in) {
				continue
			}
			res := r.handle(ctx, ed, in)
			res.Rule = r.name
			if res.Changes == nil {
				res.Changes = []Change{}
			}
			return res
		}
	}
	return Result{Reply: notUnderstood, Outcome: OutcomeNoMatch, Changes: []Change{}}
}

// Capabilities lists the kinds of commands the editor understands.
func Capabilities() []string {
	return append([]string{}, capabilities...)
}

var capabilities = []string{
	`change the site name, tagline or colours ("Change the site name to Bright Future")`,
	`update the contact email, phone or address`,
	`set or clear the announcement`,
	`add or remove a feature`,
	`set a social link ("Set Facebook link to https://facebook.com/academia")`,
	`create, rename or delete a session`,
	`set a session's price, dates or status`,
	`open or close registrations for a session`,
	`count students and sessions, list sessions`,
}

var notUnderstood = "I don't understand that yet. I can:\n- " + strings.Join(capabilities, "\n- ")

func answered(reply string) Result {
	return Result{Reply: reply, Outcome: OutcomeAnswered}
}

func clarify(reply string) Result {
	return Result{Reply: reply, Outcome: OutcomeNeedsClarification}
}

// result reports a mutation: err is logged and turned into a change that was not applied.
func (ed *Editor) result(kind, desc string, data interface{}, err error, reply string) Result {
	if err != nil {
		if core.IsValidationError(err) {
			return clarify("I couldn't do that: " + err.Error() + ".")
		}
		ed.log.Error(err.Error(), map[string]interface{}{"change": desc})
		return Result{
			Reply:   "Sorry, something went wrong while trying to " + desc + ".",
			Outcome: OutcomeFailed,
			Changes: []Change{{Kind: kind, Description: desc, Applied: false}},
		}
	}
	return Result{
		Reply:   reply,
		Outcome: OutcomeApplied,
		Changes: []Change{{Kind: kind, Description: desc, Applied: true, Data: data}},
	}
}

// findSession resolves a session by name; ok is false when the returned Result must be replied.
func (ed *Editor) findSession(ctx context.Context, name string) (sess session.Session, res Result, ok bool) {
	name = cleanName(name)
	if name == "" {
		return sess, clarify("Which session do you mean?"), false
	}
	sess, err := ed.sessions.FindByName(ctx, name)
	if err != nil {
		if errors.Cause(err) == session.ErrNotFound {
			return sess, clarify(`I couldn't find a session named "` + name + `".`), false
		}
		ed.log.Error(err.Error(), map[string]interface{}{"session": name})
		return sess, Result{Reply: "Sorry, I couldn't look up the sessions right now.", Outcome: OutcomeFailed}, false
	}
	return sess, Result{}, true
}

var (
	leadVerbRegex  = regexp.MustCompile(`(?i)^(?:please\s+)?(?:(?:set|change|update|make|modify)\s+)?(?:the\s+)?`)
	trailSessRegex = regexp.MustCompile(`(?i)\s+(?:session|cohort)$`)
	leadSessRegex  = regexp.MustCompile(`(?i)^(?:session|cohort)\s+`)
	bareSessRegex  = regexp.MustCompile(`(?i)^(?:(?:the|a|this|that)\s+)?(?:sessions?|cohorts?)$`)
)

// cleanValue trims whitespace, quotes and trailing punctuation.
func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ".!?")
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// cleanName also drops leading verbs/articles and a "session" prefix or suffix.
func cleanName(s string) string {
	s = cleanValue(s)
	s = leadVerbRegex.ReplaceAllString(s, "")
	s = leadSessRegex.ReplaceAllString(s, "")
	s = trailSessRegex.ReplaceAllString(s, "")
	s = cleanValue(s)
	if bareSessRegex.MatchString(s) {
		return ""
	}
	return s
}

// submatch returns the first non-empty capture group of re in s.
func submatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}
