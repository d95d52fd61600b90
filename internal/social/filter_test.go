package social

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTwitterFilterKeepsTopLevelComments(t *testing.T) {
	post := Post{ID: "p1", PostIDs: []string{"twitter:111", "facebook:222"}}
	comments := []Comment{
		{CommentID: "c1", Comment: "top level"},
		{CommentID: "c2", Comment: "reply to the post", ReferencedTweets: []ReferencedTweet{{ID: "111"}}},
		{CommentID: "c3", Comment: "threaded reply", ReferencedTweets: []ReferencedTweet{{ID: "999"}}},
		{CommentID: "c4", Comment: "prefixed ref", ReferencedTweets: []ReferencedTweet{{ID: "twitter:111"}}},
	}

	kept := twitterTopLevel(post, comments)

	ids := make([]string, 0, len(kept))
	for _, c := range kept {
		ids = append(ids, c.CommentID)
	}
	assert.Equal(t, []string{"c1", "c2", "c4"}, ids)
}

func TestFilterForDefaultsToIdentity(t *testing.T) {
	post := Post{ID: "p1"}
	comments := []Comment{
		{CommentID: "c1", ReferencedTweets: []ReferencedTweet{{ID: "anything"}}},
	}
	assert.Equal(t, comments, filterFor("bluesky")(post, comments))
	assert.Len(t, filterFor("twitter")(post, comments), 0)
}
