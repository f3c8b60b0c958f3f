package topics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Systems &amp; Stuff</title>
    <link>https://example.org</link>
    <item>
      <title>Zig 0.14 released</title>
      <link>https://example.org/zig</link>
      <guid>zig-014</guid>
      <description>&lt;p&gt;The new &lt;b&gt;release&lt;/b&gt;   brings
      incremental builds.&lt;/p&gt;</description>
      <pubDate>Mon, 03 Mar 2025 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Notes on io_uring</title>
      <link>https://example.org/uring</link>
      <pubDate>Sun, 02 Mar 2025 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>   </title>
      <link>https://example.org/untitled</link>
    </item>
  </channel>
</rss>`

const sampleAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Release notes</title>
  <entry>
    <title>v1.2.0</title>
    <id>tag:example.org,2025:v1.2.0</id>
    <link href="https://example.org/releases/v1.2.0"/>
    <updated>2025-03-04T12:00:00Z</updated>
    <content type="html">Bug fixes and a faster cache.</content>
  </entry>
</feed>`

func TestParser_RSS(t *testing.T) {
	title, headlines, err := NewParser().Parse(strings.NewReader(sampleRSS), "https://example.org/feed")
	require.NoError(t, err)

	assert.Equal(t, "Systems & Stuff", title)
	require.Len(t, headlines, 2, "untitled entries are skipped")

	zig := headlines[0]
	assert.Equal(t, "https://example.org/feed:zig-014", zig.ID)
	assert.Equal(t, "https://example.org/feed", zig.SourceURL)
	assert.Equal(t, "Zig 0.14 released", zig.Title)
	assert.Equal(t, "The new release brings incremental builds.", zig.Summary)
	assert.Equal(t, 2025, zig.Published.Year())

	// Without a GUID the link identifies the entry.
	assert.Equal(t, "https://example.org/feed:https://example.org/uring", headlines[1].ID)
}

func TestParser_Atom(t *testing.T) {
	title, headlines, err := NewParser().Parse(strings.NewReader(sampleAtom), "https://example.org/releases.atom")
	require.NoError(t, err)

	assert.Equal(t, "Release notes", title)
	require.Len(t, headlines, 1)
	assert.Equal(t, "v1.2.0", headlines[0].Title)
	assert.Equal(t, "Bug fixes and a faster cache.", headlines[0].Summary)
	assert.False(t, headlines[0].Published.IsZero(), "updated date is used when published is missing")
}

func TestParser_Invalid(t *testing.T) {
	_, _, err := NewParser().Parse(strings.NewReader("not a feed"), "https://example.org/feed")
	assert.Error(t, err)
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "a b", plainText("  <i>a</i>\n\n b "))
	assert.Equal(t, "Tom & Jerry", plainText("Tom &amp; Jerry"))
	assert.Equal(t, "", plainText("<br/>"))
}

func TestSummarizeTruncates(t *testing.T) {
	long := strings.Repeat("word ", 100)
	_, headlines, err := NewParser().Parse(strings.NewReader(`<rss version="2.0"><channel><title>t</title>
<item><title>x</title><guid>1</guid><description>`+long+`</description></item></channel></rss>`), "s")
	require.NoError(t, err)
	require.Len(t, headlines, 1)

	summary := []rune(headlines[0].Summary)
	assert.LessOrEqual(t, len(summary), maxSummary)
	assert.Equal(t, '…', summary[len(summary)-1])
}
