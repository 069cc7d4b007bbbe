package guardrail

import "strings"

const (
	// FallbackPolicyName is attributed when only a legacy short phrase matched.
	FallbackPolicyName = "Content Policy Violation"

	// UnknownPolicyName is attributed when a blocking phrase matched but no
	// table entry could name the policy.
	UnknownPolicyName = "Unknown Policy"
)

// PolicyEntry maps a canonical refusal phrase emitted by the rails service to
// a stable, human-readable policy name for audit and logging.
type PolicyEntry struct {
	Phrase     string
	PolicyName string
}

// policyTable is the ordered canonical phrase-to-policy mapping. Lookup is a
// case-insensitive substring scan in table order; the first match wins.
var policyTable = []PolicyEntry{
	{
		Phrase:     "I'm sorry, I can't respond to that request. I'm designed to follow specific guidelines and I cannot ignore or change my instructions.",
		PolicyName: "Jailbreak Prevention",
	},
	{
		Phrase:     "I'm sorry, I cannot assist with that request. It goes against my guidelines to provide information that could be harmful or illegal.",
		PolicyName: "Harmful Content Prevention",
	},
	{
		Phrase:     "I apologize, but I cannot provide that response as it violates content safety policies.",
		PolicyName: "Content Safety Policy",
	},
	{
		Phrase:     "I can't help with requests for personal or sensitive information such as social security numbers, passport numbers, bank or credit card details.",
		PolicyName: "PII Protection",
	},
	{
		Phrase:     "I can't assist with attempts to bypass safety or moderation rules. Please ask a different question.",
		PolicyName: "Safety Bypass Prevention",
	},
	{
		Phrase:     "I can't assist with explicit sexual content, pornography, or any sexual content involving minors or illegal situations.",
		PolicyName: "Sexual Content Prevention",
	},
	{
		Phrase:     "I'm sorry you're feeling this way. If you're in immediate danger, please contact your local emergency services.",
		PolicyName: "Self-Harm Prevention",
	},
	{
		Phrase:     "I cannot provide information about causing harm to others. Is there something else I can help you with?",
		PolicyName: "Violence Prevention",
	},
	{
		Phrase:     "I cannot assist with illegal activities. I'm here to help with legitimate and legal inquiries.",
		PolicyName: "Illegal Activity Prevention",
	},
	{
		Phrase:     "I'm designed to follow safety guidelines and cannot bypass my instructions. How else can I assist you?",
		PolicyName: "Instruction Bypass Prevention",
	},
	{
		Phrase:     "Please don't share sensitive personal information like passwords, credit cards, or social security numbers.",
		PolicyName: "Sensitive Information Protection",
	},
	{
		Phrase:     "I'm here to have respectful conversations. Let's keep things constructive.",
		PolicyName: "Toxicity Prevention",
	},
	{
		Phrase:     "I cannot create malicious code or security exploits. I can help with legitimate programming questions instead.",
		PolicyName: "Malicious Code Prevention",
	},
	{
		Phrase:     "I understand you may be frustrated. How can I help you in a constructive way?",
		PolicyName: "Respectful Interaction Policy",
	},
	{
		Phrase:     "I'm not able to provide medical diagnoses or treatment advice. Please consult a medical professional.",
		PolicyName: "Medical Advice Policy Prevention",
	},
	{
		Phrase:     "I can't provide legal advice or instructions. Please consult a qualified legal professional.",
		PolicyName: "Legal Advice Policy Prevention",
	},
}

// legacyPhrases are short refusal substrings older rails configurations emit.
// Any of them maps generically to FallbackPolicyName.
var legacyPhrases = []string{
	"I'm sorry, I can't respond to that",
	"I cannot assist with that",
	"against my guidelines",
	"inappropriate",
}

// blockingPhrases is the full ordered scan list used to decide whether a
// response is a refusal: the canonical emissions first (some carry trailing
// sentences the policy table omits), then the legacy short phrases, then the
// remaining canonical entries. Order is load-bearing: the first match wins
// and its phrase is reported as the block reason.
var blockingPhrases = []string{
	"I'm sorry, I can't respond to that request. I'm designed to follow specific guidelines and I cannot ignore or change my instructions.",
	"I'm sorry, I cannot assist with that request. It goes against my guidelines to provide information that could be harmful or illegal.",
	"I apologize, but I cannot provide that response as it violates content safety policies.",
	"I can't help with requests for personal or sensitive information such as social security numbers, passport numbers, bank or credit card details.",
	"I can't assist with attempts to bypass safety or moderation rules. Please ask a different question.",
	"I can't assist with explicit sexual content, pornography, or any sexual content involving minors or illegal situations.",
	"I'm sorry you're feeling this way. If you're in immediate danger, please contact your local emergency services. If you need someone to talk to, consider reaching out to a crisis hotline or a trusted person in your life.",
	// legacy/short phrases for compatibility
	"I'm sorry, I can't respond to that",
	"I cannot assist with that",
	"against my guidelines",
	"inappropriate",
	"I cannot provide information about causing harm to others. Is there something else I can help you with?",
	"I cannot assist with illegal activities. I'm here to help with legitimate and legal inquiries.",
	"I'm designed to follow safety guidelines and cannot bypass my instructions. How else can I assist you?",
	"Please don't share sensitive personal information like passwords, credit cards, or social security numbers. How else can I help?",
	"I'm here to have respectful conversations. Let's keep things constructive. What can I help you with?",
	"I cannot create malicious code or security exploits. I can help with legitimate programming questions instead.",
	"I understand you may be frustrated. How can I help you in a constructive way?",
	"I'm sorry, I can't respond to that.",
	"I'm not able to provide medical diagnoses or treatment advice. Please consult a medical professional.",
	"I can't provide legal advice or instructions. Please consult a qualified legal professional.",
}

// findBlockingPhrase scans text for the first blocking phrase it contains,
// case-insensitively. Returns the matched phrase and true on a hit.
func findBlockingPhrase(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, phrase := range blockingPhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return phrase, true
		}
	}
	return "", false
}

// lookupPolicyName attributes a policy name to a refusal text from the
// canonical table, falling back to the legacy set and finally to
// UnknownPolicyName.
func lookupPolicyName(text string) string {
	lower := strings.ToLower(text)
	for _, entry := range policyTable {
		if strings.Contains(lower, strings.ToLower(entry.Phrase)) {
			return entry.PolicyName
		}
	}
	for _, phrase := range legacyPhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return FallbackPolicyName
		}
	}
	return UnknownPolicyName
}

// PolicyTable returns a copy of the canonical phrase-to-policy mapping.
func PolicyTable() []PolicyEntry {
	out := make([]PolicyEntry, len(policyTable))
	copy(out, policyTable)
	return out
}
