package insights

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/companyintel/companyintel-api/internal/models"
)

const (
	// MaxTextLength bounds the combined page text embedded in the prompt.
	MaxTextLength = 150000

	truncationMarker = "... [TRUNCATED]"
	pageSeparator    = "\n\n---\n\n"
)

// OfferingLabels is the controlled vocabulary for the offering_labels field.
// The prompt instructs the model to assign a label when the page text matches
// that label's keyword group.
var OfferingLabels = []string{
	"Hosted Inference",
	"Rentable GPUs",
	"Fine-tuning Pipeline",
}

// desiredJSONSchema is the reference schema the model must conform to.
// Field names match the company_insights table exactly.
const desiredJSONSchema = `{
  "tagline": "string | null",
  "mission": "string | null",
  "service_offerings": [
    {
      "name": "string",
      "description": "string",
      "tags": ["string"]
    }
  ] | null,
  "pricing_overview": "string | null",
  "known_customers": ["string"] | null,
  "offering_labels": ["Hosted Inference" | "Rentable GPUs" | "Fine-tuning Pipeline"] | null,
  "target_audience": "string | null",
  "key_differentiators": ["string"] | null,
  "technology_overview": "string | null",
  "partnerships": ["string"] | null,
  "x_url": "string | null",
  "linkedin_url": "string | null"
}`

// fieldInstructions tells the model how to fill each output field.
const fieldInstructions = `**Fields to Extract:**

*   **tagline (text):**
    *   Extract a short, catchy phrase that encapsulates the company's value proposition or unique selling point.
    *   Look for prominent text in the hero section, main H1 heading, meta tags, or social media descriptions, especially on the home page (URL ending in '/').
    *   If multiple candidates exist, choose the most concise and prominent one that reflects the company's brand or mission.
*   **pricing_overview (text):**
    *   Prioritize content from URLs ending in '/pricing'.
    *   Look for pricing tables, plans, or tiers, and extract key details such as plan names, features, and price ranges (e.g., "$99/month for Basic Plan").
    *   If no dedicated pricing page exists, summarize any pricing details found elsewhere (e.g., blog posts, FAQs).
    *   If no pricing information is available, return "Not available" or "Pricing upon request" if the text suggests it. Otherwise use null.
*   **mission (text):**
    *   Extract the company's mission statement, often found on 'About Us' pages (URLs ending in '/about').
    *   If not explicitly labeled as a mission, look for vision statements, company values, or overarching goals in sections like the CEO's message, company history, or home page.
    *   Summarize in a concise sentence if the statement is lengthy.
*   **x_url (text) and linkedin_url (text):**
    *   Search for explicit links pointing to 'twitter.com', 'x.com', or 'linkedin.com', with special attention to footer sections.
    *   Also, look for social media icons or buttons that link to these platforms, even if the domain isn't explicitly written.
    *   Extract the full profile URL (e.g., "https://x.com/companyname"). If not found, use null.
*   **service_offerings (array of objects):**
    *   List distinct products or services described, including their names and brief descriptions.
    *   Include relevant keywords as tags (e.g., "AI", "cloud").
    *   Format as a JSON array of objects, e.g., [{"name": "Product A", "description": "AI-powered tool", "tags": ["AI", "automation"]}]. Use null if none found.
*   **known_customers (array of text):**
    *   List names of companies mentioned as customers or clients.
    *   Look for phrases like "trusted by", "customers include", or similar sections.
    *   Check case studies, testimonials, client lists, press releases, or news articles.
    *   Review text associated with company logos (e.g., alt text, captions) as these often indicate customers.
    *   Return as an array of strings, e.g., ["Company A", "Company B"]. Use null if none are found.
*   **offering_labels (array of text, controlled vocabulary):**
    *   Assign "Hosted Inference" when the text mentions hosted inference, model hosting, an inference API, or similar.
    *   Assign "Rentable GPUs" when the text mentions GPU rental, cloud GPUs, GPU access, or similar.
    *   Assign "Fine-tuning Pipeline" when the text mentions a fine-tuning pipeline, model customization, a tuning service, or similar.
    *   Only use labels from this list, each at most once, and only with clear evidence in the text. Use null if none apply.
*   **target_audience (text):**
    *   Identify the intended customer base by analyzing mentions of industries (e.g., "healthcare"), company sizes (e.g., "SMBs"), or use cases (e.g., "data scientists").
    *   Summarize in a brief description, e.g., "Enterprises in healthcare and finance". Use null if not specified.
*   **key_differentiators (array of text):**
    *   Extract what sets the company apart from competitors, such as unique features, proprietary technology, or competitive advantages.
    *   Look for phrases like "patented technology," "industry-first," or specific benefits highlighted in the text.
    *   Return as an array of strings, e.g., ["Proprietary AI algorithms", "Real-time processing"]. Use null if none are found.
*   **technology_overview (text):**
    *   Summarize the company's technological approach.
    *   Look for descriptions of their tech stack, algorithms, or innovative methods (e.g., "Uses deep learning and cloud infrastructure").
    *   Use null if no specific details are provided.
*   **partnerships (array of text):**
    *   List names of companies mentioned as partners (not customers), often in partnership sections, integrations, or collaborative projects.
    *   Return as an array of strings, e.g., ["Partner A", "Partner B"]. Use null if none are found.

**Additional Instructions:**
*   Focus on Relevance: Prioritize information directly tied to the company's core business and offerings. Avoid generic or unrelated content.
*   List Fields: For fields requiring lists (e.g., service_offerings, known_customers, partnerships), return arrays, even if empty ([]) or null if no data exists.
*   Text Prioritization: If the input text is extensive, focus on key pages like home ('/'), about ('/about'), products/services, and pricing ('/pricing').
*   Output Format: Ensure the output is valid JSON, with field names matching the schema exactly.`

// BuildPrompt assembles the extraction prompt from prioritized pages.
// It returns the prompt text and the ids of the pages included in it.
// Pages are concatenated in the order received; the combined text is
// truncated at MaxTextLength with a trailing marker.
func BuildPrompt(pages []*models.Page) (string, []int64) {
	blocks := make([]string, 0, len(pages))
	sourcePageIDs := make([]int64, 0, len(pages))
	for _, page := range pages {
		blocks = append(blocks, strings.TrimSpace(fmt.Sprintf("URL: %s\n\n%s", page.URL, page.ParsedText)))
		sourcePageIDs = append(sourcePageIDs, page.ID)
	}

	combined := strings.Join(blocks, pageSeparator)
	if len(combined) > MaxTextLength {
		// Back up to a rune boundary so the cut cannot leave a partial
		// UTF-8 sequence before the marker.
		cut := MaxTextLength
		for cut > 0 && !utf8.RuneStart(combined[cut]) {
			cut--
		}
		combined = combined[:cut] + truncationMarker
	}

	prompt := fmt.Sprintf(`Analyze the provided text from the company's website (multiple pages might be included, separated by '---') and extract the following information. Return the results in JSON format, using the exact field names specified below. If information for a field is not found, use null.

%s

Desired JSON Schema (for reference, ensure output matches this structure):
`+"```json\n%s\n```"+`

Website Text (Prioritized pages like '/', '/pricing', '/about' included if found):
--- START TEXT ---
%s
--- END TEXT ---

Generate the JSON output:`, fieldInstructions, desiredJSONSchema, combined)

	return prompt, sourcePageIDs
}
