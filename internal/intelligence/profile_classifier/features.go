package profile_classifier

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/turtacn/FakeProfile-Intelligence/internal/domain/profile"
	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

// FeatureDimension is the width of every feature vector the pipeline accepts.
const FeatureDimension = 11

// Positional indices of the features. The order is fixed by the trained
// artifacts and must never change.
const (
	IdxHasProfilePicture = iota
	IdxDigitRatioUsername
	IdxFullNameWordCount
	IdxDigitRatioFullName
	IdxNameEqualsUsername
	IdxBiographyLength
	IdxHasExternalURL
	IdxIsPrivate
	IdxPostCount
	IdxFollowerCount
	IdxFolloweeCount
)

// FeatureNames are the machine names of the features in positional order.
var FeatureNames = [FeatureDimension]string{
	"has_profile_picture",
	"digit_ratio_username",
	"fullname_word_count",
	"digit_ratio_fullname",
	"name_equals_username",
	"biography_length",
	"has_external_url",
	"is_private",
	"post_count",
	"follower_count",
	"followee_count",
}

// FeatureLabels are the human-readable feature names in positional order.
var FeatureLabels = [FeatureDimension]string{
	"Profile Picture",
	"Numbers/Length of Username",
	"Full Name Words",
	"Numbers/Length of Full Name",
	"Name Equals Username",
	"Description Length",
	"External URL",
	"Private",
	"Number of Posts",
	"Number of Followers",
	"Number of Follows",
}

// FeatureVector is the named form of the 11 derived signals. It crosses every
// boundary as the ordered slice returned by Slice.
type FeatureVector struct {
	HasProfilePicture  float64 `json:"has_profile_picture"`
	DigitRatioUsername float64 `json:"digit_ratio_username"`
	FullNameWordCount  float64 `json:"fullname_word_count"`
	DigitRatioFullName float64 `json:"digit_ratio_fullname"`
	NameEqualsUsername float64 `json:"name_equals_username"`
	BiographyLength    float64 `json:"biography_length"`
	HasExternalURL     float64 `json:"has_external_url"`
	IsPrivate          float64 `json:"is_private"`
	PostCount          float64 `json:"post_count"`
	FollowerCount      float64 `json:"follower_count"`
	FolloweeCount      float64 `json:"followee_count"`
}

// Slice returns the features in positional order.
func (v FeatureVector) Slice() []float64 {
	return []float64{
		v.HasProfilePicture,
		v.DigitRatioUsername,
		v.FullNameWordCount,
		v.DigitRatioFullName,
		v.NameEqualsUsername,
		v.BiographyLength,
		v.HasExternalURL,
		v.IsPrivate,
		v.PostCount,
		v.FollowerCount,
		v.FolloweeCount,
	}
}

// FeatureVectorFromSlice is the inverse of Slice. It returns a
// DimensionMismatch error when len(values) is not FeatureDimension.
func FeatureVectorFromSlice(values []float64) (FeatureVector, error) {
	if len(values) != FeatureDimension {
		return FeatureVector{}, errors.DimensionMismatch(FeatureDimension, len(values))
	}
	return FeatureVector{
		HasProfilePicture:  values[IdxHasProfilePicture],
		DigitRatioUsername: values[IdxDigitRatioUsername],
		FullNameWordCount:  values[IdxFullNameWordCount],
		DigitRatioFullName: values[IdxDigitRatioFullName],
		NameEqualsUsername: values[IdxNameEqualsUsername],
		BiographyLength:    values[IdxBiographyLength],
		HasExternalURL:     values[IdxHasExternalURL],
		IsPrivate:          values[IdxIsPrivate],
		PostCount:          values[IdxPostCount],
		FollowerCount:      values[IdxFollowerCount],
		FolloweeCount:      values[IdxFolloweeCount],
	}, nil
}

// LabelledFeature pairs a feature value with its name and label.
type LabelledFeature struct {
	Name  string  `json:"name"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Labelled returns the features with their names and labels in positional order.
func (v FeatureVector) Labelled() []LabelledFeature {
	values := v.Slice()
	out := make([]LabelledFeature, FeatureDimension)
	for i := range values {
		out[i] = LabelledFeature{Name: FeatureNames[i], Label: FeatureLabels[i], Value: values[i]}
	}
	return out
}

// Extract derives the feature vector from attrs. It is pure: equal inputs
// always yield bit-identical outputs. An empty username is rejected with
// ErrCodeInvalidProfile since the username digit ratio is undefined for it.
func Extract(attrs profile.Attributes) (FeatureVector, error) {
	if attrs.Username == "" {
		return FeatureVector{}, errors.New(errors.ErrCodeInvalidProfile, "username must not be empty")
	}

	usernameLen := utf8.RuneCountInString(attrs.Username)
	fullNameLen := utf8.RuneCountInString(attrs.FullName)

	return FeatureVector{
		HasProfilePicture:  boolToFloat(attrs.HasProfilePicture),
		DigitRatioUsername: float64(countDigits(attrs.Username)) / float64(usernameLen),
		FullNameWordCount:  float64(len(strings.Fields(attrs.FullName))),
		DigitRatioFullName: float64(countDigits(attrs.FullName)) / float64(max(fullNameLen, 1)),
		NameEqualsUsername: boolToFloat(nameEqualsUsername(attrs.FullName, attrs.Username)),
		BiographyLength:    float64(utf8.RuneCountInString(attrs.Biography)),
		HasExternalURL:     boolToFloat(attrs.HasExternalURL),
		IsPrivate:          boolToFloat(attrs.IsPrivate),
		PostCount:          float64(attrs.PostCount),
		FollowerCount:      float64(attrs.FollowerCount),
		FolloweeCount:      float64(attrs.FolloweeCount),
	}, nil
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

// nameEqualsUsername lowercases both sides, which is stricter than case folding,
// and removes only U+0020 from the full name.
func nameEqualsUsername(fullName, username string) bool {
	return strings.ToLower(strings.ReplaceAll(fullName, " ", "")) == strings.ToLower(username)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
