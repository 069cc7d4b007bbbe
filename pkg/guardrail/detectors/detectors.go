package detectors

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// Context keys the detectors read. Absence of a key yields a non-blocking
// false; local detectors fail open, unlike the remote path's fail-fast
// response extraction.
const (
	UserMessageKey    = "user_message"
	BotMessageKey     = "bot_message"
	LastBotMessageKey = "last_bot_message"
)

// Context carries the messages under inspection.
type Context map[string]string

var jailbreakPatterns = []*regexp.Regexp{
	regexp.MustCompile(`ignore\s+(all\s+)?previous\s+instructions`),
	regexp.MustCompile(`forget\s+(all\s+)?instructions`),
	regexp.MustCompile(`you\s+are\s+now`),
	regexp.MustCompile(`new\s+role\s*:`),
	regexp.MustCompile(`pretend\s+(you\s+are|to\s+be)`),
	regexp.MustCompile(`act\s+as\s+(if|though)`),
	regexp.MustCompile(`dan\s+mode`),
	regexp.MustCompile(`developer\s+mode`),
	regexp.MustCompile(`jailbreak`),
	regexp.MustCompile(`bypass\s+your\s+(programming|instructions|guidelines)`),
	regexp.MustCompile(`sudo\s+mode`),
	regexp.MustCompile(`admin\s+mode`),
	regexp.MustCompile(`god\s+mode`),
	regexp.MustCompile(`unrestricted\s+mode`),
	regexp.MustCompile(`ignore\s+your\s+(ethics|guidelines|rules)`),
}

var piiPatterns = map[string]*regexp.Regexp{
	"email":       regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`),
	"phone_us":    regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`),
	"phone_intl":  regexp.MustCompile(`\b\+\d{1,3}[-.\s]?\d{1,4}[-.\s]?\d{1,4}[-.\s]?\d{1,9}\b`),
	"ssn":         regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	"credit_card": regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`),
	"ip_address":  regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
}

var piiKeywords = []string{
	"social security",
	"ssn is",
	"credit card",
	"card number",
	"cvv",
	"password is",
	"my password",
	"bank account",
	"routing number",
}

var harmfulIntentPatterns = []*regexp.Regexp{
	// violence and harm
	regexp.MustCompile(`how\s+to\s+(hurt|harm|attack|injure|kill)`),
	regexp.MustCompile(`ways\s+to\s+(hurt|harm|attack|injure)`),
	regexp.MustCompile(`methods\s+(to|for)\s+(hurt|harm|kill)`),
	// illegal activities
	regexp.MustCompile(`how\s+to\s+(hack|crack|break\s+into|steal)`),
	regexp.MustCompile(`bypass\s+security`),
	regexp.MustCompile(`exploit\s+(vulnerability|system)`),
	regexp.MustCompile(`illegal\s+ways`),
	// malicious code
	regexp.MustCompile(`(create|generate|write)\s+(malware|virus|ransomware)`),
	regexp.MustCompile(`exploit\s+code`),
	regexp.MustCompile(`phishing\s+(email|template)`),
	regexp.MustCompile(`backdoor\s+code`),
	// self-harm
	regexp.MustCompile(`how\s+to\s+(commit\s+suicide|kill\s+myself|end\s+my\s+life)`),
	regexp.MustCompile(`suicide\s+methods`),
	regexp.MustCompile(`painless\s+death`),
}

var harmfulKeywords = []string{
	"violence", "violent", "attack", "hurt", "harm", "kill", "murder",
	"suicide", "self-harm", "cutting",
	"illegal", "crime", "criminal",
	"hack", "exploit", "malware", "virus",
	"drug", "cocaine", "heroin", "meth",
	"weapon", "bomb", "explosive",
	"discriminate", "racist", "sexist",
}

var sensitiveDataPatterns = map[string]*regexp.Regexp{
	"api_key":     regexp.MustCompile(`(?i)(api[_-]?key|apikey)[\s:=]+['"]?[a-zA-Z0-9_-]{20,}['"]?`),
	"password":    regexp.MustCompile(`(?i)(password|passwd|pwd)[\s:=]+['"]?[^\s'"]{8,}['"]?`),
	"token":       regexp.MustCompile(`(?i)(token|access[_-]token)[\s:=]+['"]?[a-zA-Z0-9_-]{20,}['"]?`),
	"private_key": regexp.MustCompile(`(?i)-----BEGIN\s+(RSA\s+)?PRIVATE\s+KEY-----`),
}

var policyViolationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`i can help you (hack|steal|break into)`),
	regexp.MustCompile(`here's how to (hurt|harm|attack)`),
	regexp.MustCompile(`to bypass security`),
	regexp.MustCompile(`step \d+: (hack|exploit|steal)`),
}

// DetectorSet bundles the local heuristic checks. Each detector is pure and
// order-independent; the set only carries a logger for match diagnostics.
type DetectorSet struct {
	logger *logrus.Logger
}

func NewDetectorSet(logger *logrus.Logger) *DetectorSet {
	return &DetectorSet{logger: logger}
}

// DetectJailbreakAttempt matches instruction-override phrasing in the user
// message.
func (d *DetectorSet) DetectJailbreakAttempt(ctx Context) bool {
	message := strings.ToLower(ctx[UserMessageKey])
	if message == "" {
		return false
	}
	for _, pattern := range jailbreakPatterns {
		if pattern.MatchString(message) {
			d.logger.WithField("pattern", pattern.String()).Debug("jailbreak pattern detected")
			return true
		}
	}
	return false
}

// ContainsPII reports whether the user message carries personally
// identifiable information.
func (d *DetectorSet) ContainsPII(ctx Context) bool {
	message := ctx[UserMessageKey]
	if message == "" {
		return false
	}
	for piiType, pattern := range piiPatterns {
		if pattern.MatchString(message) {
			d.logger.WithField("pii_type", piiType).Debug("pii detected")
			return true
		}
	}
	lower := strings.ToLower(message)
	for _, keyword := range piiKeywords {
		if strings.Contains(lower, keyword) {
			d.logger.WithField("keyword", keyword).Debug("pii keyword detected")
			return true
		}
	}
	return false
}

// DetectHarmfulIntent matches instructional phrasing around violence,
// hacking, malicious code and self-harm in the user message.
func (d *DetectorSet) DetectHarmfulIntent(ctx Context) bool {
	message := strings.ToLower(ctx[UserMessageKey])
	if message == "" {
		return false
	}
	for _, pattern := range harmfulIntentPatterns {
		if pattern.MatchString(message) {
			d.logger.WithField("pattern", pattern.String()).Debug("harmful intent pattern detected")
			return true
		}
	}
	return false
}

// IsHarmfulContent checks the bot response for harmful keywords in an
// instructional context. A keyword alone does not trigger; it must co-occur
// with an instruction template around it.
func (d *DetectorSet) IsHarmfulContent(ctx Context) bool {
	message := strings.ToLower(botMessage(ctx))
	if message == "" {
		return false
	}
	for _, keyword := range harmfulKeywords {
		if !strings.Contains(message, keyword) {
			continue
		}
		templates := []string{
			fmt.Sprintf("how to %s", keyword),
			fmt.Sprintf("ways to %s", keyword),
			fmt.Sprintf("steps to %s", keyword),
			fmt.Sprintf("to %s someone", keyword),
			fmt.Sprintf("%s by", keyword),
		}
		for _, template := range templates {
			if strings.Contains(message, template) {
				d.logger.WithField("keyword", keyword).Debug("harmful content in instruction context")
				return true
			}
		}
	}
	return false
}

// ContainsSensitiveData checks the bot response for accidentally leaked
// credentials.
func (d *DetectorSet) ContainsSensitiveData(ctx Context) bool {
	message := botMessage(ctx)
	if message == "" {
		return false
	}
	for dataType, pattern := range sensitiveDataPatterns {
		if pattern.MatchString(message) {
			d.logger.WithField("data_type", dataType).Debug("sensitive data leak detected")
			return true
		}
	}
	return false
}

// ViolatesPolicy checks the bot response for text framed as compliance with
// a harmful request.
func (d *DetectorSet) ViolatesPolicy(ctx Context) bool {
	message := strings.ToLower(botMessage(ctx))
	if message == "" {
		return false
	}
	for _, pattern := range policyViolationPatterns {
		if pattern.MatchString(message) {
			d.logger.WithField("pattern", pattern.String()).Debug("policy violation detected")
			return true
		}
	}
	return false
}

func botMessage(ctx Context) string {
	if msg := ctx[BotMessageKey]; msg != "" {
		return msg
	}
	return ctx[LastBotMessageKey]
}
