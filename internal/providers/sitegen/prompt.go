package sitegen

import (
	"fmt"
	"sort"
	"strings"
)

const systemPrompt = `You are a professional web designer and front-end developer.
Generate a complete, responsive, single-file HTML website from the information provided.

Requirements:
1. Return a full HTML document starting with <!DOCTYPE html>.
2. Inline all CSS in a <style> tag and include @media queries.
3. Include a fixed navigation bar, a hero section, content sections and a footer.
4. Use semantic HTML5 and keep the page accessible.
5. Do not add emoji unless the user content contains them.
6. Place <div id="ai-chat-container"></div> right before the footer.
7. Reference uploaded images only through their placeholders, exactly as given, e.g. <img src="{{ logo }}">.
Return only the HTML code without any explanation.`

// buildPrompt renders the user message for a generation request.
func buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Generate a complete single page website.\n\n")

	fmt.Fprintf(&b, "Template style: %s\n\n", req.TemplateID)

	b.WriteString("Company information:\n")
	fmt.Fprintf(&b, "- Name: %s\n", coalesce(req.Field("company_name"), "My Company"))
	fmt.Fprintf(&b, "- Tagline: %s\n", coalesce(req.Field("tagline"), "(choose a fitting tagline)"))
	fmt.Fprintf(&b, "- Description: %s\n\n", coalesce(req.Field("description"), "(write a description that fits the style)"))

	b.WriteString("Contact:\n")
	fmt.Fprintf(&b, "- Email: %s\n", coalesce(req.Field("contact_email"), "contact@example.com"))
	if phone := req.Field("contact_phone"); phone != "" {
		fmt.Fprintf(&b, "- Phone: %s\n", phone)
	}
	b.WriteString("\n")

	if services := stringList(req.Fields["services"]); len(services) > 0 {
		b.WriteString("Services:\n")
		for i, s := range services {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
		b.WriteString("\n")
	}

	if items, ok := req.Fields["portfolio"].([]any); ok && len(items) > 0 {
		b.WriteString("Portfolio:\n")
		for i, raw := range items {
			item, _ := raw.(map[string]any)
			title, _ := item["title"].(string)
			fmt.Fprintf(&b, "%d. %s\n", i+1, coalesce(title, fmt.Sprintf("Project %d", i+1)))
			if desc, _ := item["description"].(string); desc != "" {
				fmt.Fprintf(&b, "   %s\n", desc)
			}
		}
		b.WriteString("\n")
	}

	if style := req.Field("custom_style"); style != "" {
		fmt.Fprintf(&b, "Custom style requirements:\n%s\n\n", style)
	}

	if len(req.AssetKeys) > 0 {
		keys := append([]string(nil), req.AssetKeys...)
		sort.Strings(keys)
		b.WriteString("Uploaded images (use these placeholders as src values):\n")
		for _, key := range keys {
			fmt.Fprintf(&b, "- {{ %s }}\n", key)
		}
	}
	return b.String()
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}
