package mailbox

import (
	"bytes"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
)

var (
	codePattern   = regexp.MustCompile(`\b\d{6}\b`)
	scriptPattern = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
)

// ExtractCode returns the first standalone 6 digit run of text
func ExtractCode(text string) (string, bool) {
	code := codePattern.FindString(text)
	return code, code != ""
}

// ExtractText decodes a raw RFC 5322 message into readable text.
// text/plain parts win; HTML parts are used with their tags removed.
func ExtractText(raw []byte) (string, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return "", err
	}

	var plain, htmlText strings.Builder
	if err := collectText(entity, &plain, &htmlText); err != nil {
		return "", err
	}

	if plain.Len() > 0 {
		return plain.String(), nil
	}
	return StripTags(htmlText.String()), nil
}

func collectText(entity *message.Entity, plain, htmlText *strings.Builder) error {
	if mr := entity.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil && !message.IsUnknownCharset(err) {
				return err
			}
			if err := collectText(part, plain, htmlText); err != nil {
				return err
			}
		}
	}

	mediaType, _, _ := entity.Header.ContentType()
	if mediaType != "" && !strings.HasPrefix(mediaType, "text/") {
		return nil
	}

	body, err := io.ReadAll(entity.Body)
	if err != nil {
		return err
	}

	if mediaType == "text/html" {
		htmlText.Write(body)
		htmlText.WriteString("\n")
		return nil
	}
	plain.Write(body)
	plain.WriteString("\n")
	return nil
}

// StripTags turns an HTML fragment into whitespace separated text
func StripTags(s string) string {
	s = scriptPattern.ReplaceAllString(s, " ")
	s = tagPattern.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}
