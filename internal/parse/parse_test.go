package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
  <channel>
    <title>Example News</title>
    <link>https://example.com</link>
    <description>All the example news</description>
    <category domain="https://example.com/cat">tech</category>
    <ttl>60</ttl>
    <pubDate>Mon, 05 Jan 2026 10:00:00 GMT</pubDate>
    <item>
      <title>First Post</title>
      <link>https://example.com/1</link>
      <guid>urn:example:1</guid>
      <author>alice@example.com</author>
      <description>&lt;p&gt;Hello &lt;b&gt;world&lt;/b&gt;&lt;/p&gt;</description>
      <pubDate>Mon, 05 Jan 2026 09:00:00 GMT</pubDate>
      <category>go</category>
    </item>
    <item>
      <title>No GUID Here</title>
      <link>https://example.com/2</link>
      <itunes:author>Bob</itunes:author>
      <pubDate>Sun, 04 Jan 2026 09:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Atom</title>
  <subtitle>Atom flavored news</subtitle>
  <link rel="alternate" href="https://example.org"/>
  <link rel="self" href="https://example.org/atom.xml"/>
  <updated>2026-01-05T10:00:00Z</updated>
  <entry>
    <title>Atom Entry</title>
    <id>urn:example:atom:1</id>
    <link rel="alternate" href="https://example.org/1"/>
    <author><name>Carol</name></author>
    <summary>Plain summary</summary>
    <content type="html">&lt;p&gt;Body&lt;/p&gt;</content>
    <category term="news" scheme="https://example.org/scheme"/>
    <published>2026-01-05T09:00:00Z</published>
    <updated>2026-01-05T09:30:00Z</updated>
  </entry>
</feed>`

func TestParseRSS(t *testing.T) {
	f, items, err := Parse([]byte(rssFixture), "https://example.com/rss")
	require.NoError(t, err)

	assert.Equal(t, "Example News", f.Title)
	assert.Equal(t, "All the example news", f.Description)
	assert.Equal(t, "https://example.com/rss", f.SourceURL)
	assert.Equal(t, "https://example.com", f.SiteLink)
	require.NotNil(t, f.TTL)
	assert.Equal(t, "60", *f.TTL)
	require.NotNil(t, f.PubDate)
	require.Len(t, f.Categories, 1)
	assert.Equal(t, "tech", f.Categories[0].Name)
	require.NotNil(t, f.Categories[0].Domain)

	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "urn:example:1", first.ID)
	assert.Equal(t, f.ID, first.FeedID)
	require.NotNil(t, first.Author)
	assert.Equal(t, "alice@example.com", *first.Author)
	require.NotNil(t, first.TextDescription)
	assert.Equal(t, "Hello world", *first.TextDescription)
	require.NotNil(t, first.PubDate)
	assert.Equal(t, time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), first.PubDate.UTC())
	assert.False(t, first.Read)
	assert.False(t, first.Favorite)

	second := items[1]
	assert.NotEmpty(t, second.ID, "guid-less item gets a content-hash id")
	assert.NotEqual(t, first.ID, second.ID)
	require.NotNil(t, second.Author)
	assert.Equal(t, "Bob", *second.Author, "itunes author fallback")
	assert.Nil(t, second.Description, "omitted field stays absent")
	assert.Nil(t, second.Content)
}

func TestParseAtom(t *testing.T) {
	f, items, err := Parse([]byte(atomFixture), "https://example.org/atom.xml")
	require.NoError(t, err)

	assert.Equal(t, "Example Atom", f.Title)
	assert.Equal(t, "Atom flavored news", f.Description)
	assert.Equal(t, "https://example.org", f.SiteLink)
	assert.Nil(t, f.TTL)

	require.Len(t, items, 1)
	it := items[0]
	assert.Equal(t, "urn:example:atom:1", it.ID)
	require.NotNil(t, it.Link)
	assert.Equal(t, "https://example.org/1", *it.Link)
	require.NotNil(t, it.Author)
	assert.Equal(t, "Carol", *it.Author)
	require.NotNil(t, it.Content)
	assert.Equal(t, "<p>Body</p>", *it.Content)
	require.NotNil(t, it.PubDate)
	assert.Equal(t, time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), it.PubDate.UTC())
	require.Len(t, it.Categories, 1)
	assert.Equal(t, "news", it.Categories[0].Name)
}

func TestParseDeterministicIDs(t *testing.T) {
	f1, items1, err := Parse([]byte(rssFixture), "https://example.com/rss")
	require.NoError(t, err)
	f2, items2, err := Parse([]byte(rssFixture), "https://example.com/rss")
	require.NoError(t, err)

	assert.Equal(t, f1.ID, f2.ID)
	require.Equal(t, len(items1), len(items2))
	for i := range items1 {
		assert.Equal(t, items1[i].ID, items2[i].ID)
	}
}

func TestParseUnsupported(t *testing.T) {
	for name, payload := range map[string]string{
		"garbage":  "certainly not a feed",
		"html":     "<html><body>nope</body></html>",
		"jsonfeed": `{"version": "https://jsonfeed.org/version/1.1", "title": "x"}`,
	} {
		_, _, err := Parse([]byte(payload), "https://example.com/"+name)
		require.Error(t, err, name)
		assert.ErrorIs(t, err, ErrUnsupported, name)
		assert.NotErrorIs(t, err, ErrMalformed, name)
	}
}

func TestParseMalformed(t *testing.T) {
	payload := `<?xml version="1.0"?><rss version="2.0"><channel><title>x</wrong></channel></rss>`
	_, _, err := Parse([]byte(payload), "https://example.com/bad")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "https://example.com/bad", perr.SourceURL)
}
