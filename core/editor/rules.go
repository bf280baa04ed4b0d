package editor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/trezcool/academia/core/session"
	"github.com/trezcool/academia/core/settings"
)

// rules in priority order: the first matching one handles the command.
var rules = []rule{
	{"help", matchHelp, handleHelp},
	{"session_price", func(in input) bool { return in.has("price") }, handleSessionPrice},
	{"site_name", func(in input) bool { return in.has("site name", "website name", "name of the site") }, handleSiteName},
	{"tagline", func(in input) bool { return in.has("tagline", "slogan") }, handleTagline},
	{"primary_color", func(in input) bool { return in.has("primary") && in.has("color", "colour") }, handlePrimaryColor},
	{"secondary_color", func(in input) bool { return in.has("secondary") && in.has("color", "colour") }, handleSecondaryColor},
	{"contact_email", func(in input) bool { return in.has("email") }, handleContactEmail},
	{"contact_phone", func(in input) bool { return in.has("phone") }, handleContactPhone},
	{"address", func(in input) bool { return in.has("address") }, handleAddress},
	{"clear_announcement", func(in input) bool { return in.has("announcement") && in.has("clear", "remove", "delete") }, handleClearAnnouncement},
	{"set_announcement", func(in input) bool { return in.has("announce") }, handleSetAnnouncement},
	{"add_feature", func(in input) bool { return in.has("feature") && in.has("add") }, handleAddFeature},
	{"remove_feature", func(in input) bool { return in.has("feature") && in.has("remove", "delete") }, handleRemoveFeature},
	{"social_link", matchSocialLink, handleSocialLink},
	{"create_session", func(in input) bool { return in.has("session") && in.has("create", "add ", "new session") }, handleCreateSession},
	{"delete_session", func(in input) bool { return in.has("session") && in.has("delete", "remove", "cancel") }, handleDeleteSession},
	{"rename_session", func(in input) bool { return in.has("rename") }, handleRenameSession},
	{"session_dates", func(in input) bool { return datesWordRegex.MatchString(in.lower) }, handleSessionDates},
	{"registration", func(in input) bool { return in.has("registration") && in.has("open", "close") }, handleRegistration},
	{"session_status", matchSessionStatus, handleSessionStatus},
	{"leader", func(in input) bool { return in.has("leader") }, handleLeader},
	{"stats", func(in input) bool { return in.has("how many") && in.has("student", "session") }, handleStats},
	{"list_sessions", func(in input) bool { return in.has("list", "show") && in.has("session") }, handleListSessions},
}

var (
	priceRegex      = regexp.MustCompile(`(?i)price\s+(?:of|for)\s+(.+?)\s+(?:to|at|is)\s+(.+)$|^(.+?)\s+price\s+(?:to|at|is)\s+(.+)$`)
	priceTokenRegex = regexp.MustCompile(`(?i)\d|\bfree\b`)

	siteNameRegex = regexp.MustCompile(`(?i)(?:site\s+name|website\s+name|name\s+of\s+the\s+site)\s+(?:to|as|is|=|:)\s*(.+)$`)
	taglineRegex  = regexp.MustCompile(`(?i)(?:tagline|slogan)\s+(?:to|as|is|=|:)\s*(.+)$`)
	colorRegex    = regexp.MustCompile(`(?i)(?:\bto|\bas|\bis|=|:)\s*(#[0-9a-f]{6}|#[0-9a-f]{3}|[a-z]{3,20})\s*[.!]?$`)
	emailRegex    = regexp.MustCompile(`[\w.+-]+@[\w-]+(?:\.[\w-]+)+`)
	phoneRegex    = regexp.MustCompile(`\+?\d[\d\s().-]{5,19}\d`)
	addressRegex  = regexp.MustCompile(`(?i)address\s+(?:to|as|is|=|:)\s*(.+)$`)

	announceRegex    = regexp.MustCompile(`(?i)announce(?:ment)?(?:\s+(?:to|as|is|that))?\s*:?\s*(.+)$`)
	addFeatureRegex  = regexp.MustCompile(`(?i)add\s+(?:a\s+|the\s+)?(?:new\s+)?(?:feature\s*:?\s*)?(.+?)(?:\s+(?:to|in)\s+(?:the\s+)?features?(?:\s+list)?)?\s*$`)
	rmFeatureRegex   = regexp.MustCompile(`(?i)(?:remove|delete)\s+(?:the\s+)?(?:feature\s*:?\s*)?(.+?)(?:\s+from\s+(?:the\s+)?features?(?:\s+list)?)?\s*$`)
	urlRegex         = regexp.MustCompile(`(?i)https?://\S+`)
	createSessRegex  = regexp.MustCompile(`(?i)session\s*(?:called|named|titled)?\s*:?\s*(.+)$`)
	deleteSessRegex  = regexp.MustCompile(`(?i)(?:delete|remove|cancel)\s+(.+)$`)
	renameSessRegex  = regexp.MustCompile(`(?i)rename\s+(.+?)\s+(?:to|as)\s+(.+)$`)
	datesNameRegex   = regexp.MustCompile(`(?i)dates?\s+(?:of|for)\s+(.+?)\s+(?:to|from|as|:)\s+\d{4}|^(.+?)\s+dates?\b`)
	datesWordRegex   = regexp.MustCompile(`\bdates?\b`)
	dateRegex        = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	registrationRegx = regexp.MustCompile(`(?i)registrations?\s+(?:for|of|to|on)\s+(.+)$|(?:open|close)\s+(.+?)\s+registrations?`)
	statusRegex      = regexp.MustCompile(`(?i)status\s+(?:of|for)\s+(.+?)\s+(?:to|as)\s+\w+|mark\s+(.+?)\s+as\s+\w+|set\s+(.+?)\s+(?:to|as)\s+\w+\s*[.!]?$`)
	leaderRegex      = regexp.MustCompile(`(?i)(?:make|set|assign|appoint)\s+(.+?)\s+(?:as\s+)?(?:the\s+|a\s+)?(?:session\s+)?leader(?:\s+(?:of|for)\s+(.+))?\s*$`)
)

var socialNetworks = []string{"facebook", "twitter", "instagram", "linkedin", "youtube", "tiktok", "whatsapp"}

func matchHelp(in input) bool {
	return in.lower == "help" || strings.HasPrefix(in.lower, "help ") || in.has("what can you do")
}

func handleHelp(_ context.Context, _ *Editor, _ input) Result {
	return answered("Here is what I can do:\n- " + strings.Join(capabilities, "\n- "))
}

func handleSessionPrice(ctx context.Context, ed *Editor, in input) Result {
	m := priceRegex.FindStringSubmatch(in.text)
	var name, price string
	if m != nil {
		name, price = m[1]+m[3], cleanValue(m[2]+m[4])
	}
	if !priceTokenRegex.MatchString(price) {
		return clarify(`What should the price be? For example: "Set the price of Leadership Bootcamp to 50,000 FCFA" or "... to free".`)
	}
	sess, res, ok := ed.findSession(ctx, name)
	if !ok {
		return res
	}
	updated, err := ed.sessions.SetPrice(ctx, sess.ID, price)
	desc := fmt.Sprintf("set the price of %s to %s", sess.Name, price)
	return ed.result(KindSession, desc, updated, err, fmt.Sprintf(`The price of "%s" is now %s.`, sess.Name, price))
}

func (ed *Editor) patchSettings(ctx context.Context, field, value string, p settings.Patch) Result {
	s, err := ed.settings.Update(ctx, p)
	desc := fmt.Sprintf("set the %s to %s", field, value)
	return ed.result(KindSettings, desc, s, err, fmt.Sprintf(`Done! The %s is now "%s".`, field, value))
}

func handleSiteName(ctx context.Context, ed *Editor, in input) Result {
	name := cleanValue(submatch(siteNameRegex, in.text))
	if name == "" {
		return clarify(`What should the new site name be? For example: "Change the site name to Bright Future".`)
	}
	return ed.patchSettings(ctx, "site name", name, settings.Patch{SiteName: &name})
}

func handleTagline(ctx context.Context, ed *Editor, in input) Result {
	tagline := cleanValue(submatch(taglineRegex, in.text))
	if tagline == "" {
		return clarify("What should the new tagline be?")
	}
	return ed.patchSettings(ctx, "tagline", tagline, settings.Patch{Tagline: &tagline})
}

func handlePrimaryColor(ctx context.Context, ed *Editor, in input) Result {
	color := submatch(colorRegex, in.text)
	if color == "" {
		return clarify(`Which colour? For example: "Set the primary colour to #1e3a8a".`)
	}
	return ed.patchSettings(ctx, "primary colour", color, settings.Patch{PrimaryColor: &color})
}

func handleSecondaryColor(ctx context.Context, ed *Editor, in input) Result {
	color := submatch(colorRegex, in.text)
	if color == "" {
		return clarify(`Which colour? For example: "Set the secondary colour to #f59e0b".`)
	}
	return ed.patchSettings(ctx, "secondary colour", color, settings.Patch{SecondaryColor: &color})
}

func handleContactEmail(ctx context.Context, ed *Editor, in input) Result {
	email := strings.ToLower(emailRegex.FindString(in.text))
	if email == "" {
		return clarify("What is the new contact email address?")
	}
	return ed.patchSettings(ctx, "contact email", email, settings.Patch{ContactEmail: &email})
}

func handleContactPhone(ctx context.Context, ed *Editor, in input) Result {
	phone := strings.TrimSpace(phoneRegex.FindString(in.text))
	if phone == "" {
		return clarify("What is the new contact phone number?")
	}
	return ed.patchSettings(ctx, "contact phone", phone, settings.Patch{ContactPhone: &phone})
}

func handleAddress(ctx context.Context, ed *Editor, in input) Result {
	addr := cleanValue(submatch(addressRegex, in.text))
	if addr == "" {
		return clarify("What is the new address?")
	}
	return ed.patchSettings(ctx, "address", addr, settings.Patch{Address: &addr})
}

func handleClearAnnouncement(ctx context.Context, ed *Editor, _ input) Result {
	s, err := ed.settings.ClearAnnouncement(ctx)
	return ed.result(KindSettings, "clear the announcement", s, err, "The announcement has been cleared.")
}

func handleSetAnnouncement(ctx context.Context, ed *Editor, in input) Result {
	text := cleanValue(submatch(announceRegex, in.text))
	if text == "" {
		return clarify(`What should the announcement say? For example: "Set the announcement to Registrations close on Friday".`)
	}
	s, err := ed.settings.SetAnnouncement(ctx, text)
	return ed.result(KindSettings, "set the announcement", s, err, fmt.Sprintf(`The announcement now reads: "%s".`, text))
}

func handleAddFeature(ctx context.Context, ed *Editor, in input) Result {
	feature := cleanValue(submatch(addFeatureRegex, in.text))
	if feature == "" || strings.EqualFold(feature, "feature") {
		return clarify("Which feature should I add?")
	}
	s, err := ed.settings.AddFeature(ctx, feature)
	return ed.result(KindSettings, "add the feature "+feature, s, err, fmt.Sprintf(`Added "%s" to the features.`, feature))
}

func handleRemoveFeature(ctx context.Context, ed *Editor, in input) Result {
	feature := cleanValue(submatch(rmFeatureRegex, in.text))
	if feature == "" || strings.EqualFold(feature, "feature") {
		return clarify("Which feature should I remove?")
	}
	s, removed, err := ed.settings.RemoveFeature(ctx, feature)
	if err == nil && !removed {
		return clarify(fmt.Sprintf(`"%s" is not in the features list.`, feature))
	}
	return ed.result(KindSettings, "remove the feature "+feature, s, err, fmt.Sprintf(`Removed "%s" from the features.`, feature))
}

func matchSocialLink(in input) bool {
	return in.has("social") || in.has(socialNetworks...)
}

func handleSocialLink(ctx context.Context, ed *Editor, in input) Result {
	var network string
	for _, n := range socialNetworks {
		if in.has(n) {
			network = n
			break
		}
	}
	url := strings.TrimRight(urlRegex.FindString(in.text), ".,!")
	if network == "" || url == "" {
		return clarify(`Which link? For example: "Set the Facebook link to https://facebook.com/academia".`)
	}
	s, err := ed.settings.SetSocialLink(ctx, network, url)
	return ed.result(KindSettings, fmt.Sprintf("set the %s link", network), s, err,
		fmt.Sprintf("The %s link is now %s.", strings.ToUpper(network[:1])+network[1:], url))
}

func handleCreateSession(ctx context.Context, ed *Editor, in input) Result {
	name := cleanName(submatch(createSessRegex, in.text))
	if name == "" {
		return clarify(`What should the new session be called? For example: "Create a session called Leadership Bootcamp".`)
	}
	sess, err := ed.sessions.Create(ctx, session.NewSession{Name: name})
	return ed.result(KindSession, "create the session "+name, sess, err,
		fmt.Sprintf(`Created the session "%s". Registrations are open.`, name))
}

func handleDeleteSession(ctx context.Context, ed *Editor, in input) Result {
	sess, res, ok := ed.findSession(ctx, submatch(deleteSessRegex, in.text))
	if !ok {
		return res
	}
	_, err := ed.sessions.Delete(ctx, sess.ID)
	return ed.result(KindSession, "delete the session "+sess.Name, sess, err, fmt.Sprintf(`Deleted the session "%s".`, sess.Name))
}

func handleRenameSession(ctx context.Context, ed *Editor, in input) Result {
	m := renameSessRegex.FindStringSubmatch(in.text)
	if m == nil || cleanName(m[2]) == "" {
		return clarify(`Please tell me the current and the new name: "Rename Leadership 101 to Leadership Bootcamp".`)
	}
	newName := cleanName(m[2])
	sess, res, ok := ed.findSession(ctx, m[1])
	if !ok {
		return res
	}
	updated, err := ed.sessions.Rename(ctx, sess.ID, newName)
	return ed.result(KindSession, fmt.Sprintf("rename %s to %s", sess.Name, newName), updated, err,
		fmt.Sprintf(`Renamed "%s" to "%s".`, sess.Name, newName))
}

func handleSessionDates(ctx context.Context, ed *Editor, in input) Result {
	dates := dateRegex.FindAllString(in.text, 2)
	if len(dates) < 2 {
		return clarify(`Please give a start and an end date (YYYY-MM-DD): "Set the dates of Leadership Bootcamp to 2024-03-01 - 2024-03-15".`)
	}
	sess, res, ok := ed.findSession(ctx, submatch(datesNameRegex, in.text))
	if !ok {
		return res
	}
	updated, err := ed.sessions.SetDates(ctx, sess.ID, dates[0], dates[1])
	desc := fmt.Sprintf("set the dates of %s to %s - %s", sess.Name, dates[0], dates[1])
	return ed.result(KindSession, desc, updated, err,
		fmt.Sprintf(`"%s" now runs from %s to %s.`, sess.Name, dates[0], dates[1]))
}

func handleRegistration(ctx context.Context, ed *Editor, in input) Result {
	status, verb := session.RegistrationOpen, "opened"
	if in.has("close") {
		status, verb = session.RegistrationClosed, "closed"
	}
	sess, res, ok := ed.findSession(ctx, submatch(registrationRegx, in.text))
	if !ok {
		return res
	}
	updated, err := ed.sessions.SetRegistrationStatus(ctx, sess.ID, status)
	return ed.result(KindSession, fmt.Sprintf("set the registrations of %s to %s", sess.Name, status), updated, err,
		fmt.Sprintf(`Registrations for "%s" are now %s.`, sess.Name, verb))
}

func statusIn(in input) (session.Status, bool) {
	for _, st := range session.Statuses {
		if in.has(string(st)) {
			return st, true
		}
	}
	return "", false
}

func matchSessionStatus(in input) bool {
	if in.has("status") {
		return true
	}
	_, ok := statusIn(in)
	return ok && in.has("session", "mark")
}

func handleSessionStatus(ctx context.Context, ed *Editor, in input) Result {
	status, ok := statusIn(in)
	if !ok {
		return clarify("Which status? A session can be upcoming, ongoing or completed.")
	}
	sess, res, ok := ed.findSession(ctx, submatch(statusRegex, in.text))
	if !ok {
		return res
	}
	updated, err := ed.sessions.SetStatus(ctx, sess.ID, status)
	return ed.result(KindSession, fmt.Sprintf("set the status of %s to %s", sess.Name, status), updated, err,
		fmt.Sprintf(`"%s" is now %s.`, sess.Name, status))
}

// handleLeader only records the intent: leaders are assigned from the students page.
func handleLeader(_ context.Context, _ *Editor, in input) Result {
	m := leaderRegex.FindStringSubmatch(in.text)
	if m == nil || cleanValue(m[1]) == "" {
		return clarify(`Who should be the leader? For example: "Make Jane Doe the leader of Leadership Bootcamp".`)
	}
	who := cleanValue(m[1])
	desc := "assign the leader role to " + who
	if sess := cleanName(m[2]); sess != "" {
		desc += " for " + sess
	}
	return Result{
		Reply: fmt.Sprintf(
			`To make %s a leader, open the students page and toggle "Leader" on their record.`, who),
		Outcome: OutcomeAnswered,
		Changes: []Change{{Kind: KindStudent, Description: desc, Applied: false}},
	}
}

func handleStats(ctx context.Context, ed *Editor, _ input) Result {
	students, err := ed.students.Query(ctx, nil)
	if err != nil {
		ed.log.Error(err.Error())
		return Result{Reply: "Sorry, I couldn't count the students right now.", Outcome: OutcomeFailed}
	}
	sessions, err := ed.sessions.Query(ctx, nil)
	if err != nil {
		ed.log.Error(err.Error())
		return Result{Reply: "Sorry, I couldn't count the sessions right now.", Outcome: OutcomeFailed}
	}
	var open int
	for _, s := range sessions {
		if s.AcceptsRegistrations() {
			open++
		}
	}
	return answered(fmt.Sprintf("There are %d students and %d sessions (%d open for registration).",
		len(students), len(sessions), open))
}

func handleListSessions(ctx context.Context, ed *Editor, _ input) Result {
	sessions, err := ed.sessions.Query(ctx, nil)
	if err != nil {
		ed.log.Error(err.Error())
		return Result{Reply: "Sorry, I couldn't list the sessions right now.", Outcome: OutcomeFailed}
	}
	if len(sessions) == 0 {
		return answered("There are no sessions yet.")
	}
	lines := make([]string, 0, len(sessions))
	for _, s := range sessions {
		lines = append(lines, fmt.Sprintf("%s (%s, registration %s)", s.Name, s.Status, s.RegistrationStatus))
	}
	return answered("Sessions:\n- " + strings.Join(lines, "\n- "))
}
