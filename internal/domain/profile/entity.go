// Package profile defines the social-media account model consumed by the
// classification pipeline and the contract of the sources that supply it.
package profile

import "strings"

// Attributes is the minimal set of account fields the feature extractor reads.
// Counts are taken as reported by the source and are neither clamped nor
// validated.
type Attributes struct {
	Username          string `json:"username"`
	FullName          string `json:"full_name"`
	Biography         string `json:"biography"`
	HasProfilePicture bool   `json:"has_profile_picture"`
	HasExternalURL    bool   `json:"has_external_url"`
	IsPrivate         bool   `json:"is_private"`
	PostCount         int64  `json:"post_count"`
	FollowerCount     int64  `json:"follower_count"`
	FolloweeCount     int64  `json:"followee_count"`
}

// Profile is an account as returned by a Source: the extractor attributes plus
// display data.
type Profile struct {
	Attributes

	ProfilePicURL     string `json:"profile_pic_url"`
	ExternalURL       string `json:"external_url"`
	IsVerified        bool   `json:"is_verified"`
	IsBusinessAccount bool   `json:"is_business_account"`
}

// Info is the display subset returned to API callers as profile_info.
type Info struct {
	Username      string `json:"username"`
	FullName      string `json:"full_name"`
	Biography     string `json:"biography"`
	ProfilePicURL string `json:"profile_pic_url"`
	IsPrivate     bool   `json:"is_private"`
	NumPosts      int64  `json:"num_posts"`
	NumFollowers  int64  `json:"num_followers"`
	NumFollows    int64  `json:"num_follows"`
	ExternalURL   string `json:"external_url"`
}

// New builds a Profile and derives the presence flags from the display URLs.
func New(username, fullName, biography, picURL, externalURL string, private bool, posts, followers, follows int64) *Profile {
	return &Profile{
		Attributes: Attributes{
			Username:          username,
			FullName:          fullName,
			Biography:         biography,
			HasProfilePicture: strings.TrimSpace(picURL) != "",
			HasExternalURL:    strings.TrimSpace(externalURL) != "",
			IsPrivate:         private,
			PostCount:         posts,
			FollowerCount:     followers,
			FolloweeCount:     follows,
		},
		ProfilePicURL: picURL,
		ExternalURL:   externalURL,
	}
}

// Info projects the display subset of p.
func (p *Profile) Info() Info {
	if p == nil {
		return Info{}
	}
	return Info{
		Username:      p.Username,
		FullName:      p.FullName,
		Biography:     p.Biography,
		ProfilePicURL: p.ProfilePicURL,
		IsPrivate:     p.IsPrivate,
		NumPosts:      p.PostCount,
		NumFollowers:  p.FollowerCount,
		NumFollows:    p.FolloweeCount,
		ExternalURL:   p.ExternalURL,
	}
}

// NormalizeUsername trims surrounding whitespace and a leading '@'.
func NormalizeUsername(username string) string {
	return strings.TrimPrefix(strings.TrimSpace(username), "@")
}
