// ABOUTME: Prompt text, time-of-day bands and canned fallback openers
// ABOUTME: All outbound copy is Uzbek (latin script)
package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/harper/dmagent/internal/models"
)

// TimeOfDay buckets the local hour for tone and fallback selection
type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"
	Afternoon TimeOfDay = "afternoon"
	Evening   TimeOfDay = "evening"
)

// TimeOfDayAt maps 08-11 to morning, 12-17 to afternoon and everything else to evening
func TimeOfDayAt(t time.Time) TimeOfDay {
	switch h := t.Hour(); {
	case h >= 8 && h < 12:
		return Morning
	case h >= 12 && h < 18:
		return Afternoon
	}
	return Evening
}

var fallbackOpenings = map[TimeOfDay]string{
	Morning:   "Assalomu alaykum! Ishlaringiz va biznesingiz yaxshimi? Akkauntingizni kuzatib qiziq mavzularni ko'rdim.",
	Afternoon: "Assalomu alaykum! Biznesingiz rivoji qanday ketyapti? Profilingizdagi kontentlar juda qiziqarli ekan.",
	Evening:   "Assalomu alaykum! Xayrli kech. Ishlaringiz yaxshimi? Profilingizni ko'rib juda qiziqib qoldim.",
}

const defaultFallbackOpening = "Assalomu alaykum! Ishlaringiz yaxshimi? Profilingizni kuzatib juda qiziqib qoldim."

// FallbackOpening returns the canned first message for tod
func FallbackOpening(tod TimeOfDay) string {
	if msg, ok := fallbackOpenings[tod]; ok {
		return msg
	}
	return defaultFallbackOpening
}

// SystemPrompt frames every conversational generation
const SystemPrompt = `You are an Instagram DM Sales Agent for an AI Automation Agency.
Your goal is to briefly acknowledge the lead, introduce your AI project services, and invite them to continue the discussion if they are interested.

PROPOSITION:
"Biz AI (sun'iy intellekt) bilan ishlaydigan loyihalar amalga oshiramiz."

LANGUAGE:
- Uzbek (latin only)

GLOBAL RULES (STRICT):
- Max 2 short sentences per message
- No emojis
- No links
- No hashtags
- Sound professional yet conversational (like a busy founder, not a bot)
- Ask only ONE question per message OR give one call to action
- Never argue or persuade

CONVERSATION FLOW:
1. FIRST MESSAGE: [Brief observation about their work/post] + [Mention you do AI projects] + [Soft question about their interest]
2. QUALIFICATION: if they show curiosity, give one sentence of example value and ask if they want to discuss details.
3. REJECTION: reply once "Tushundim, rahmat. Ishlaringizga omad." and stop.

Do not be pushy, do not waste time on small talk. Respond ONLY with your message text.`

// OpeningInput is the profile context for a first message
type OpeningInput struct {
	Bio           string
	LastPostTopic string
	Niche         string
	TimeOfDay     TimeOfDay
}

// ReplyInput is the conversation context for a follow-up message
type ReplyInput struct {
	History   []models.Message
	Lead      models.Lead
	State     models.ConversationState
	TimeOfDay TimeOfDay
}

func nichePrompt(bio, lastPost string) string {
	return fmt.Sprintf(`Analyze this Instagram profile and determine the niche.

Bio: %s
Last post: %s

Based on the content, classify into ONE of these categories:
- business (company, B2B, consulting, agency)
- ecommerce (online shop, products, dropshipping)
- services (freelancer, trainer, specialist)
- personal_brand (influencer, blogger, content creator)

Respond with ONLY the category name, nothing else.`, bio, lastPost)
}

func openingPrompt(in OpeningInput) string {
	return fmt.Sprintf(`Generate a first DM message for this Instagram user.

PROFILE INFO:
- Bio: %s
- Last post topic: %s
- Niche: %s
- Local time of day: %s

STRATEGY:
1. Mention a specific thing you liked about their profile/post.
2. Introduce our service: "Biz AI (sun'iy intellekt) bilan ishlaydigan loyihalar amalga oshiramiz."
3. Ask if they are interested in optimizing their processes with AI.

RULES:
- Max 2 short sentences
- Uzbek language (latin)
- Professional and human tone

Generate the message:`, in.Bio, in.LastPostTopic, in.Niche, in.TimeOfDay)
}

func replyPrompt(in ReplyInput) string {
	var history strings.Builder
	for _, m := range in.History {
		speaker := "User"
		if m.Role == models.RoleBot {
			speaker = "Bot"
		}
		fmt.Fprintf(&history, "%s: %s\n", speaker, m.Content)
	}

	stage := "- Keep qualifying: clarify that we help businesses save time and cost with AI projects."
	if in.State == models.StateSoftTransition {
		stage = `- The lead has engaged for a while: invite them to continue ("Agar xizmatimizdan foydalanishni xohlasangiz, direktimga yozing.").`
	}

	return fmt.Sprintf(`Continue this Instagram DM conversation about AI Project services.

LEAD:
- Handle: @%s
- Niche: %s
- Bio: %s
- Local time of day: %s

CONVERSATION HISTORY:
%s
STRATEGY:
%s
- If user says something vague (like "bilmadim", "ha"): bridge to the AI service invitation.

RULES:
- Max 2 short sentences
- One question or one clear call to action
- Uzbek language (latin)

Generate your reply:`, in.Lead.Handle, in.Lead.Niche, in.Lead.Bio, in.TimeOfDay, history.String(), stage)
}

// cleanOutput trims whitespace and wrapping quotes from generated text
func cleanOutput(s string) string {
	return strings.Trim(strings.TrimSpace(s), "\"'` \n")
}
