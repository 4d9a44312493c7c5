package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const fixture = `<html><body>
<div class="card">
	<h1>  Alice
		Smith </h1>
	<ul>
		<li>Rating: <b>1,500</b></li>
		<li>Highest Rating: <b>1,720</b></li>
	</ul>
</div>
</body></html>`

func TestTextHelpers(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fixture))
	require.NoError(t, err)

	require.Equal(t, "Alice Smith", FirstText(doc.Selection, "h1"))

	value, ok := LabelledValue(doc.Selection, "li", "Highest Rating")
	require.True(t, ok)
	require.Equal(t, "1,720", value)

	value, ok = LabelledValue(doc.Selection, "li", "Rating")
	require.True(t, ok)
	require.Equal(t, "1,500", value)

	_, ok = LabelledValue(doc.Selection, "li", "Rank")
	require.False(t, ok)
}
