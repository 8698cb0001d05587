package claude

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/kroslabs/quickyshoppy/internal/model"
)

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

// message content is either a plain string or a list of content blocks.
type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messageResponse struct {
	Content []contentBlock `json:"content"`
}

// text returns the first text block, or "".
func (r *messageResponse) text() string {
	for _, b := range r.Content {
		if b.Type == "text" {
			return b.Text
		}
	}
	return ""
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func categorizePrompt(name string) string {
	var sb strings.Builder
	sb.WriteString("You are a shopping list categorizer. Given the item name, respond with ONLY the category name from this list:\n")
	for _, c := range model.Categories() {
		if c == model.Uncategorised {
			continue
		}
		sb.WriteString(c.DisplayName())
		sb.WriteByte('\n')
	}
	sb.WriteString("\nItem: ")
	sb.WriteString(name)
	sb.WriteString("\n\nCategory:")
	return sb.String()
}

const extractPrompt = `Analyze this recipe image and extract all ingredients with their quantities.

Convert all imperial measurements to metric:
- 1 cup = 237ml
- 1 oz = 28g
- 1 tbsp = 15ml
- 1 tsp = 5ml
- 1 lb = 454g

Respond with one ingredient per line in this exact format:
ingredient_name|quantity

For example:
flour|473ml
eggs|3
butter|227g
salt|5ml

If no quantity is visible, just put the ingredient name without |.
Respond with ONLY the ingredient list, nothing else.`

// ParseCategory resolves the first line of a categorization reply.
func ParseCategory(text string) model.Category {
	line, _, _ := strings.Cut(text, "\n")
	return model.CategoryFromDisplayName(strings.TrimSpace(line))
}

// ParseIngredients reads one "name|quantity" pair per line. A line without
// "|" is a name with no quantity; blank lines and blank names are dropped.
func ParseIngredients(text string) []model.Ingredient {
	ingredients := []model.Ingredient{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, quantity, _ := strings.Cut(line, "|")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		ingredients = append(ingredients, model.Ingredient{
			Name:     name,
			Quantity: strings.TrimSpace(quantity),
			Selected: true,
		})
	}
	return ingredients
}

var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// MediaType sniffs the image format, defaulting to JPEG.
func MediaType(image []byte) string {
	ct := http.DetectContentType(image)
	if imageTypes[ct] {
		return ct
	}
	return "image/jpeg"
}

func encodeImage(image []byte) string {
	return base64.StdEncoding.EncodeToString(image)
}
