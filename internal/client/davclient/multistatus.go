// Copyright (C) 2020 Storj Labs, Inc.
// See LICENSE for copying information.

package davclient

import (
	"encoding/xml"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/zeebo/errs"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	cli "storj.io/davbridge/internal/client"
)

// multiStatus mirrors the fixed subset of the DAV multistatus document the
// listing needs. Element names are left namespace-unqualified so whatever
// prefix the server picks still matches.
type multiStatus struct {
	XMLName   xml.Name      `xml:"multistatus"`
	Responses []davResponse `xml:"response"`
}

type davResponse struct {
	Href      string     `xml:"href"`
	Propstats []propstat `xml:"propstat"`
}

type propstat struct {
	Status string        `xml:"status"`
	Prop   resourceProps `xml:"prop"`
}

type resourceProps struct {
	DisplayName   string       `xml:"displayname"`
	ContentLength string       `xml:"getcontentlength"`
	LastModified  string       `xml:"getlastmodified"`
	ETag          string       `xml:"getetag"`
	ResourceType  resourceType `xml:"resourcetype"`
}

type resourceType struct {
	Collection *struct{} `xml:"collection"`
}

// props flattens the propstat blocks of one response. Servers split found
// and missing properties into separate blocks, so the first non-empty value
// of each field wins.
func (r davResponse) props() resourceProps {
	var merged resourceProps
	for _, ps := range r.Propstats {
		if merged.DisplayName == "" {
			merged.DisplayName = ps.Prop.DisplayName
		}
		if merged.ContentLength == "" {
			merged.ContentLength = ps.Prop.ContentLength
		}
		if merged.LastModified == "" {
			merged.LastModified = ps.Prop.LastModified
		}
		if merged.ETag == "" {
			merged.ETag = ps.Prop.ETag
		}
		if merged.ResourceType.Collection == nil {
			merged.ResourceType.Collection = ps.Prop.ResourceType.Collection
		}
	}
	return merged
}

// parseMultiStatus turns a multi-status listing body into a normalized
// Listing. requestPath is the URL path the PROPFIND was issued against; the
// entry describing that path itself is the collection's self descriptor and
// is excluded. Entries with no display name are non-resource metadata
// responses and are skipped, as are individually malformed fields; only an
// unparseable document fails the whole call.
func parseMultiStatus(data []byte, requestPath string) (*cli.Listing, error) {
	var doc multiStatus
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, errs.New("malformed multi-status body: %v", err)
	}

	self := strings.Trim(requestPath, "/")
	listing := &cli.Listing{}
	for _, entry := range doc.Responses {
		props := entry.props()
		if props.DisplayName == "" {
			continue
		}
		if hrefPath(entry.Href) == self {
			continue
		}

		isDir := props.ResourceType.Collection != nil
		var size int64
		if !isDir {
			// Absent or malformed content lengths read as zero.
			size, _ = strconv.ParseInt(strings.TrimSpace(props.ContentLength), 10, 64)
			if size < 0 {
				size = 0
			}
		}

		listing.Objects = append(listing.Objects, cli.Object{
			Key:          props.DisplayName,
			Name:         props.DisplayName,
			Size:         size,
			LastModified: props.LastModified,
			IsDirectory:  isDir,
			ETag:         strings.Trim(props.ETag, `"`),
		})
		if isDir {
			listing.Prefixes = append(listing.Prefixes, props.DisplayName)
		}
	}

	sortListing(listing)
	return listing, nil
}

// hrefPath reduces an href to its separator-stripped, URL-decoded path for
// comparison against the request path.
func hrefPath(href string) string {
	href = strings.TrimSpace(href)
	if u, err := url.Parse(href); err == nil {
		href = u.Path
	} else if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}
	return strings.Trim(href, "/")
}

// sortListing orders directories before files and collates display names
// within each group, folding case and width differences. The collator is
// built per call; collate.Collator is not safe for concurrent use.
func sortListing(listing *cli.Listing) {
	collator := collate.New(language.Und, collate.Loose)
	sort.SliceStable(listing.Objects, func(i, j int) bool {
		a, b := listing.Objects[i], listing.Objects[j]
		if a.IsDirectory != b.IsDirectory {
			return a.IsDirectory
		}
		return collator.CompareString(a.Name, b.Name) < 0
	})
	sort.SliceStable(listing.Prefixes, func(i, j int) bool {
		return collator.CompareString(listing.Prefixes[i], listing.Prefixes[j]) < 0
	})
}
