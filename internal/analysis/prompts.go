// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analysis

import "text/template"

var findingPromptTmpl = template.Must(template.New("finding").Parse(`Extract the key finding from this paper in 1-2 sentences:

Title: {{.Title}}
Summary: {{.Text}}

Key finding:`))

var synthesisPromptTmpl = template.Must(template.New("synthesis").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`Analyze these research papers and provide insights.

Research Query: {{.Query}}

Papers:
{{range $i, $p := .Papers}}{{if $i}}

{{end}}{{inc $i}}. {{$p.Title}} ({{$p.Year}})
   Authors: {{$p.Authors}}
   {{$p.Text}}{{end}}

Provide a structured synthesis covering:
1. Main Themes: What are the common themes?
2. Key Contributions: What are the major findings?
3. Methodologies: What approaches are used?
4. Trends: What patterns emerge?

Be concise but insightful (300-400 words).`))

var gapsPromptTmpl = template.Must(template.New("gaps").Parse(`Based on these recent papers on "{{.Query}}", identify 3-4 research gaps:

Papers:
{{range .Titles}}- {{.}}
{{end}}
List specific research gaps that need more investigation:`))

var comparePromptTmpl = template.Must(template.New("compare").Parse(`Analyze this paper's {{.Aspect}}:

Title: {{.Title}}
Summary: {{.Text}}

Describe the {{.Aspect}} in one sentence:`))

var reviewPromptTmpl = template.Must(template.New("review").Parse(`Generate a concise literature review on: {{.Query}}

Papers available: {{len .Papers}} papers
{{range .Papers}}
- {{.Title}}{{if .Year}} ({{.Year}}){{end}}{{end}}

Structure:
1. Introduction (what is being studied)
2. Current State (recent findings)
3. Future Directions (gaps and opportunities)

Keep it academic but concise (400-500 words).`))

// paperPrompt is the view of a paper rendered into prompts.
type paperPrompt struct {
	Title   string
	Year    string
	Authors string
	Text    string
}
