package htmlutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const page = `<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<meta name="csrf-param" content="authenticity_token">
	<meta name="csrf-token" content=" Zm9vYmFy== ">
</head>
<body>
	<div class="flash error">
		Invalid email
		or password.
	</div>
	<div class="flash error"></div>
</body>
</html>`

func TestMetaContent(t *testing.T) {
	doc, err := ParseDocument([]byte(page))
	if err != nil {
		t.Fatal(err)
	}

	require.Equal(t, "Zm9vYmFy==", MetaContent(doc, "csrf-token"))
	require.Equal(t, "authenticity_token", MetaContent(doc, "csrf-param"))
	require.Equal(t, "", MetaContent(doc, "missing"))
}

func TestCleanText(t *testing.T) {
	doc, err := ParseDocument([]byte(page))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "Invalid email or password.", CleanText(doc.Find(".flash")))
}

func TestCleanTextKeepsWordBoundaries(t *testing.T) {
	doc, err := ParseDocument([]byte("<html><head><title>\n  Just a\nmoment...\n\t</title></head></html>"))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "Just a moment...", CleanText(doc.Find("title")))
}
