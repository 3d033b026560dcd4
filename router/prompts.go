package router

// classificationPrompt asks the oracle to pick a domain and report its
// confidence as strict JSON in the shape decisionWire decodes.
const classificationPrompt = `You are the request router of a logistics platform.
Classify the user request into exactly one primary domain.

Available domains:
{{.Domains}}

{{if .History}}Recent conversation (may disambiguate the request):
{{.History}}

{{end}}User request:
{{.Query}}

Respond with JSON only, no prose:
{
  "domain": "<domain identifier>",
  "confidence": <0.0 to 1.0>,
  "reasoning": "<one sentence>",
  "cross_domain": <true if another domain must also be consulted>,
  "secondary_domains": ["<domain identifier>", ...]
}`
