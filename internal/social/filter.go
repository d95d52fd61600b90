package social

import "strings"

// commentFilter trims a post's comment batch before ingestion.
type commentFilter func(post Post, comments []Comment) []Comment

func filterFor(platform string) commentFilter {
	if strings.EqualFold(platform, "twitter") {
		return twitterTopLevel
	}
	return identityFilter
}

func identityFilter(_ Post, comments []Comment) []Comment {
	return comments
}

// twitterTopLevel keeps comments whose referencedTweets is empty or
// references one of the post's own ids. Threaded replies reference other
// comments and would otherwise be counted as top-level comments.
func twitterTopLevel(post Post, comments []Comment) []Comment {
	postIDs := make(map[string]struct{}, len(post.PostIDs)*2)
	for _, id := range post.PostIDs {
		postIDs[id] = struct{}{}
		if i := strings.IndexByte(id, ':'); i >= 0 {
			postIDs[id[i+1:]] = struct{}{}
		}
	}

	kept := comments[:0:0]
	for _, comment := range comments {
		if len(comment.ReferencedTweets) == 0 {
			kept = append(kept, comment)
			continue
		}
		for _, ref := range comment.ReferencedTweets {
			if _, ok := postIDs[ref.ID]; ok {
				kept = append(kept, comment)
				break
			}
		}
	}
	return kept
}
