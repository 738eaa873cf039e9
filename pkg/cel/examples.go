package cel

// FilterExpressionExamples are policy expressions over the message variables.
var FilterExpressionExamples = map[string]string{
	"ignore_self":        `!from_self`,
	"groups_only":        `is_group`,
	"direct_only":        `!is_group`,
	"commands_only":      `text.startsWith("!")`,
	"text_contains":      `text.contains("hello")`,
	"type_in_list":       `type in ["conversation", "extendedTextMessage", "imageMessage"]`,
	"allowed_sender":     `sender_id in ["6281234567890@s.whatsapp.net"]`,
	"mentioned":          `"6281234567890@s.whatsapp.net" in mentions`,
	"mention_count":      `size(mentions) <= 5`,
	"conversation_match": `conversation_id.endsWith("@g.us") && text != ""`,
	"media_with_caption": `!has_media || text != ""`,
	"named_sender":       `push_name != "" || from_self`,
	"regex":              `!text.matches("(?i)spam")`,
}
