package scrape

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	stdhtml "html"
	"strings"

	"golang.org/x/net/html"
)

// parseChannelVideos walks the uploads page down to its rich grid and
// returns the listed videos in page order.
func parseChannelVideos(page []byte) ([]Video, error) {
	raw, err := extractScriptVar(page, "ytInitialData")
	if err != nil {
		return nil, err
	}

	var data struct {
		Contents struct {
			TwoColumnBrowseResultsRenderer struct {
				Tabs []struct {
					TabRenderer struct {
						Content struct {
							RichGridRenderer struct {
								Contents []struct {
									RichItemRenderer struct {
										Content struct {
											VideoRenderer videoRenderer `json:"videoRenderer"`
										} `json:"content"`
									} `json:"richItemRenderer"`
								} `json:"contents"`
							} `json:"richGridRenderer"`
						} `json:"content"`
					} `json:"tabRenderer"`
				} `json:"tabs"`
			} `json:"twoColumnBrowseResultsRenderer"`
		} `json:"contents"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decoding ytInitialData: %w", err)
	}

	var videos []Video
	for _, tab := range data.Contents.TwoColumnBrowseResultsRenderer.Tabs {
		for _, item := range tab.TabRenderer.Content.RichGridRenderer.Contents {
			vr := item.RichItemRenderer.Content.VideoRenderer
			if vr.VideoID == "" {
				continue
			}
			videos = append(videos, Video{
				VideoID: vr.VideoID,
				Title:   vr.title(),
			})
		}
	}
	if videos == nil {
		return nil, fmt.Errorf("no videos found in channel page")
	}
	return videos, nil
}

type videoRenderer struct {
	VideoID string `json:"videoId"`
	Title   struct {
		Runs []struct {
			Text string `json:"text"`
		} `json:"runs"`
		SimpleText string `json:"simpleText"`
	} `json:"title"`
}

func (vr videoRenderer) title() string {
	if len(vr.Title.Runs) > 0 {
		return vr.Title.Runs[0].Text
	}
	return vr.Title.SimpleText
}

// parseCaptionTracks pulls the caption-track list out of a watch page's
// embedded player response. An empty slice means the video has no captions.
func parseCaptionTracks(page []byte) ([]captionTrack, error) {
	raw, err := extractScriptVar(page, "ytInitialPlayerResponse")
	if err != nil {
		return nil, err
	}

	var pr struct {
		Captions struct {
			PlayerCaptionsTracklistRenderer struct {
				CaptionTracks []captionTrack `json:"captionTracks"`
			} `json:"playerCaptionsTracklistRenderer"`
		} `json:"captions"`
	}
	if err := json.Unmarshal(raw, &pr); err != nil {
		return nil, fmt.Errorf("decoding player response: %w", err)
	}
	return pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks, nil
}

// extractScriptVar finds the <script> that assigns the named top-level var
// and returns its JSON object literal.
func extractScriptVar(page []byte, name string) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing page html: %w", err)
	}

	marker := name + " = "
	var found []byte
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "script" && n.FirstChild != nil {
			text := n.FirstChild.Data
			if idx := strings.Index(text, marker); idx >= 0 {
				if obj := balancedJSON(text[idx+len(marker):]); obj != "" {
					found = []byte(obj)
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if found == nil {
		return nil, fmt.Errorf("script variable %s not found", name)
	}
	return found, nil
}

// balancedJSON returns the leading balanced {...} literal of s, tracking
// string and escape state so braces inside values don't end the scan.
func balancedJSON(s string) string {
	if !strings.HasPrefix(s, "{") {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

// timedText is the caption XML document shape.
type timedText struct {
	XMLName xml.Name `xml:"transcript"`
	Texts   []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Body  string `xml:",chardata"`
	} `xml:"text"`
}

// parseTimedText flattens a timedtext caption document to a single string.
// Caption bodies are HTML-entity encoded on top of the XML escaping.
func parseTimedText(data []byte) (string, error) {
	var doc timedText
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("decoding timedtext: %w", err)
	}

	parts := make([]string, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		body := strings.TrimSpace(stdhtml.UnescapeString(t.Body))
		if body != "" {
			parts = append(parts, body)
		}
	}
	return strings.Join(parts, " "), nil
}
