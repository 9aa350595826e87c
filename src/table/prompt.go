package table

import (
	"fmt"
	"strings"
)

// BuildPrompt asks for a JSON object whose "rows" array holds one object per
// data row, keyed by the exact header strings.
func BuildPrompt(text string, headers Headers) string {
	list := strings.Join(headers, ", ")

	example := make([]string, len(headers))
	for i, h := range headers {
		example[i] = fmt.Sprintf("%q: \"...\"", h)
	}

	var b strings.Builder
	b.WriteString("You are a data extraction assistant. Extract table data from the following OCR text and format it as JSON.\n\n")
	fmt.Fprintf(&b, "Target columns: %s\n\n", list)
	fmt.Fprintf(&b, "OCR Text:\n%s\n\n", text)
	b.WriteString("Instructions:\n")
	b.WriteString("1. Look for tabular data in the text\n")
	b.WriteString("2. Extract each row of data\n")
	fmt.Fprintf(&b, "3. Map the data to the target columns: %s\n", list)
	b.WriteString("4. Return a JSON object with a \"rows\" array\n")
	b.WriteString("5. Each row should be an object with keys matching the target column names exactly\n")
	b.WriteString("6. If a column value is missing or unclear, use an empty string\n")
	b.WriteString("7. Clean up any formatting issues or incomplete text\n")
	b.WriteString("8. Only include actual data rows, never a header row\n\n")
	b.WriteString("Example format:\n")
	fmt.Fprintf(&b, "{\n  \"rows\": [\n    {%s}\n  ]\n}", strings.Join(example, ", "))
	return b.String()
}
