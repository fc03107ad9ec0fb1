package feedparse

import "encoding/xml"

// rssDocument is a loosely-typed view over RSS 2.0: encoding/xml
// simply drops any element it has no matching field for, which is
// how unknown foreign elements are ignored per §4.D.
type rssDocument struct {
	XMLName xml.Name  `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string         `xml:"title"`
	Description string         `xml:"description"`
	Link        string         `xml:"link"`
	PubDate     string         `xml:"pubDate"`
	GUID        string         `xml:"guid"`
	Author      string         `xml:"author"`
	Category    []string       `xml:"category"`
	Enclosure   *rssEnclosure  `xml:"enclosure"`
	MediaContent *rssMedia     `xml:"http://search.yahoo.com/mrss/ content"`
	MediaThumbnail *rssMedia   `xml:"http://search.yahoo.com/mrss/ thumbnail"`
}

type rssEnclosure struct {
	URL  string `xml:"url,attr"`
	Type string `xml:"type,attr"`
}

type rssMedia struct {
	URL string `xml:"url,attr"`
}
