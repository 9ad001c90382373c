package cache

import (
	"fmt"
	"strconv"
)

type tagKind uint8

const (
	tagCampaigns tagKind = iota + 1
	tagCampaignAnalytics
	tagCampaign
	tagOrganization
	tagList
)

// ListKind names a cached campaign list.
type ListKind string

const (
	ListPopular    ListKind = "popular"
	ListTrending   ListKind = "trending"
	ListEndingSoon ListKind = "ending_soon"
	ListRecent     ListKind = "recent"
)

// Lists is every cached list kind.
var Lists = []ListKind{ListPopular, ListTrending, ListEndingSoon, ListRecent}

// Tag labels cache entries for bulk invalidation. Tags can only be built
// with the constructors below.
type Tag struct {
	kind tagKind
	id   int64
	list ListKind
}

// CampaignsTag is carried by every campaign-derived entry.
func CampaignsTag() Tag { return Tag{kind: tagCampaigns} }

// CampaignAnalyticsTag is carried by every analytics read model.
func CampaignAnalyticsTag() Tag { return Tag{kind: tagCampaignAnalytics} }

// CampaignTag labels entries derived from one campaign.
func CampaignTag(id int64) Tag { return Tag{kind: tagCampaign, id: id} }

// OrganizationTag labels entries derived from one organization's campaigns.
func OrganizationTag(id int64) Tag { return Tag{kind: tagOrganization, id: id} }

// ListTag labels one cached list.
func ListTag(kind ListKind) Tag { return Tag{kind: tagList, list: kind} }

// String renders the tag, e.g. "campaign:42".
func (t Tag) String() string {
	switch t.kind {
	case tagCampaigns:
		return "campaigns"
	case tagCampaignAnalytics:
		return "campaign_analytics"
	case tagCampaign:
		return "campaign:" + strconv.FormatInt(t.id, 10)
	case tagOrganization:
		return "organization:" + strconv.FormatInt(t.id, 10)
	case tagList:
		return "campaigns_" + string(t.list)
	default:
		return ""
	}
}

// IsZero reports whether the tag was not built by a constructor.
func (t Tag) IsZero() bool {
	return t.kind == 0
}

// patterns returns key globs that cover the tag's entries for stores without
// a tag index. Organization tags have no key shape; their entries are always
// also tagged by campaign.
func (t Tag) patterns(prefix string) []string {
	switch t.kind {
	case tagCampaigns:
		return []string{prefix + "campaigns:*", prefix + "analytics:*"}
	case tagCampaignAnalytics:
		return []string{prefix + "analytics:*"}
	case tagCampaign:
		key := prefix + AnalyticsKey(t.id)
		return []string{key, key + ":*"}
	case tagList:
		return []string{prefix + "campaigns:" + string(t.list) + ":*"}
	default:
		return nil
	}
}

// AnalyticsKey is the key of a campaign's full analytics read model.
func AnalyticsKey(campaignID int64) string {
	return fmt.Sprintf("analytics:campaign:%d", campaignID)
}

// AnalyticsSummaryKey is the key of a campaign's bulk-built summary.
func AnalyticsSummaryKey(campaignID int64) string {
	return AnalyticsKey(campaignID) + ":summary"
}

// ListKey is the key of a cached list at a given limit.
func ListKey(kind ListKind, limit int) string {
	return fmt.Sprintf("campaigns:%s:limit:%d", kind, limit)
}

// AnalyticsTags are the tags carried by a campaign's analytics entries.
func AnalyticsTags(campaignID, organizationID int64) []Tag {
	tags := []Tag{CampaignAnalyticsTag(), CampaignsTag(), CampaignTag(campaignID)}
	if organizationID > 0 {
		tags = append(tags, OrganizationTag(organizationID))
	}
	return tags
}

// ListTags are the tags carried by a cached list.
func ListTags(kind ListKind) []Tag {
	return []Tag{CampaignsTag(), ListTag(kind)}
}
