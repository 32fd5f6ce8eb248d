package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/goaudit/internal/domain"
)

func TestExtractMetadata(t *testing.T) {
	html := `<html><head>
		<title>  Widget Store  </title>
		<meta name="description" content="All the widgets you could want.">
	</head><body><h1>Widgets</h1><h1>Second Heading</h1></body></html>`

	md, err := ExtractMetadata(html)
	require.NoError(t, err)
	assert.Equal(t, "Widget Store", md.Title)
	assert.Equal(t, "All the widgets you could want.", md.MetaDescription)
	assert.Equal(t, "Widgets", md.H1, "first h1 wins")
}

func TestExtractMetadataEmptyPage(t *testing.T) {
	md, err := ExtractMetadata(`<html><body></body></html>`)
	require.NoError(t, err)
	assert.Empty(t, md.Title)
	assert.Empty(t, md.MetaDescription)
	assert.Empty(t, md.H1)
}

func TestExtractLinks(t *testing.T) {
	html := `<html><body>
		<a href="/about">About</a>
		<a href="/about">About again</a>
		<a href="https://other.example/page">Elsewhere</a>
		<a href="#top">Top</a>
		<a href="mailto:help@shop.example">Mail</a>
		<a href="   ">Blank</a>
		<img src="/img/logo.svg">
	</body></html>`

	links, err := ExtractLinks(html, "https://shop.example/products")
	require.NoError(t, err)

	urls := make([]string, 0, len(links))
	for _, l := range links {
		urls = append(urls, l.URL)
	}
	assert.Equal(t, []string{
		"https://shop.example/about",
		"https://other.example/page",
		"#top",
		"mailto:help@shop.example",
		"https://shop.example/img/logo.svg",
	}, urls, "relative refs resolved, duplicates and blanks dropped, document order kept")

	assert.Equal(t, "About", links[0].Text, "first occurrence keeps its text")
	assert.Empty(t, links[4].Text, "images have no text")
}

func TestClassifyLink(t *testing.T) {
	page := "https://shop.example/products"

	tests := []struct {
		name string
		url  string
		want domain.LinkType
	}{
		{"same host", "https://shop.example/cart", domain.LinkTypeInternal},
		{"other host", "https://other.example/", domain.LinkTypeExternal},
		{"fragment", "#reviews", domain.LinkTypeInternal},
		{"mailto", "mailto:help@shop.example", domain.LinkTypeInternal},
		{"javascript", "javascript:void(0)", domain.LinkTypeInternal},
		{"stylesheet", "https://shop.example/app.css", domain.LinkTypeAsset},
		{"image on cdn", "https://cdn.example/hero.JPG", domain.LinkTypeAsset},
		{"pdf", "https://shop.example/catalog.pdf", domain.LinkTypeAsset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyLink(tt.url, page))
		})
	}
}

func TestCountFormFields(t *testing.T) {
	html := `<form>
		<input type="text" name="name">
		<input type="email" name="email">
		<select name="country"><option>CA</option></select>
		<textarea name="notes"></textarea>
	</form>`

	count, err := CountFormFields(html)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestHasGuestCheckout(t *testing.T) {
	assert.True(t, HasGuestCheckout(`<a href="/guest">Continue as Guest</a>`))
	assert.True(t, HasGuestCheckout(`<p>Order without creating an account.</p>`))
	assert.False(t, HasGuestCheckout(`<a href="/register">Create an account</a>`))
}
