package restyutil

import (
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/go-resty/resty/v2"
)

// dumps are written to disk for debugging scrapers, page bodies past this
// size are cut off.
const maxDumpBody = 64 << 10

var redactedHeaders = map[string]bool{
	"Authorization": true,
	"Cookie":        true,
	"Set-Cookie":    true,
	"X-Csrftoken":   true,
}

func writeHeaders(out *strings.Builder, headers http.Header) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		for _, v := range headers[k] {
			if redactedHeaders[http.CanonicalHeaderKey(k)] {
				v = "<redacted>"
			}
			fmt.Fprintf(out, "%s: %s\n", k, v)
		}
	}
}

func truncateBody(body string) string {
	if len(body) <= maxDumpBody {
		return body
	}
	return fmt.Sprintf(
		"<truncated %d bytes>\n%s",
		len(body)-maxDumpBody,
		body[:maxDumpBody],
	)
}

func requestBody(req *http.Request) string {
	if req.GetBody == nil {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("<get body: %s>", err)
	}
	defer body.Close()
	contents, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("<read body: %s>", err)
	}
	return string(contents)
}

// formatHttpMessage renders a request/response pair as plain text. the
// response body is always the last thing in the dump.
func formatHttpMessage(res *resty.Response) string {
	var out strings.Builder

	out.WriteString("==> REQUEST\n")
	fmt.Fprintf(&out, "%s %s\n", res.Request.Method, res.Request.URL)
	if raw := res.Request.RawRequest; raw != nil {
		writeHeaders(&out, raw.Header)
		if body := requestBody(raw); body != "" {
			out.WriteString("\n")
			out.WriteString(truncateBody(body))
			out.WriteString("\n")
		}
	}

	out.WriteString("\n<== RESPONSE\n")
	status := res.Status()
	if status == "" {
		status = fmt.Sprint(res.StatusCode())
	}
	fmt.Fprintf(&out, "%s (%s)\n", status, res.Time())
	if raw := res.RawResponse; raw != nil {
		if location, err := raw.Location(); err == nil {
			fmt.Fprintf(&out, "redirected to %s\n", location)
		}
	}
	writeHeaders(&out, res.Header())
	out.WriteString("\n")
	out.WriteString(truncateBody(res.String()))

	return out.String()
}
