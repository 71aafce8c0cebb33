package entitlement

// DefaultRules returns the plan-feature rule set gating the actions
// spec.md §3's pricing map enumerates. Action strings match the
// ledger.Action constants exactly, since the orchestrator checks
// entitlement and reserves ledger points for the same named action. Each
// expression runs against a plan's Features list; actions with no rule
// here (pdf_import, raw_upload, chat_default_llm) are allowed to every
// plan and only subject to quota/daily-counter checks in Check.
func DefaultRules() []Rule {
	return []Rule{
		{Action: "chat_other_llm", Expression: `"other_llm_chat" in features`},
		{Action: "doc_edit", Expression: `"document_ai" in features`},
		{Action: "doc_translate", Expression: `"document_ai" in features`},
		{Action: "doc_format", Expression: `"document_ai" in features`},
		{Action: "doc_bilingual", Expression: `"document_ai" in features`},
		{Action: "image_generate", Expression: `"images" in features`},
		{Action: "slide_format", Expression: `"slide_ai" in features`},
		{Action: "slide_edit", Expression: `"slide_ai" in features`},
		{Action: "slide_chunk", Expression: `"slide_ai" in features`},
		{Action: "audio_narration", Expression: `"narration" in features`},
		{Action: "test_evaluate", Expression: `"test_ai" in features`},
	}
}
