package mentions

import (
	"encoding/json"
	"strconv"

	"github.com/davidnajera/mentiondesk-backend/internal/social"
	"github.com/davidnajera/mentiondesk-backend/pkg/types"
)

// replyTaskData is the payload of REPLY_MENTION and REPLY_MENTION_IGNORED
// tasks. MentionID is stored as a string so the partial unique indexes on
// data->>'mentionId' compare consistently.
type replyTaskData struct {
	MentionID string          `json:"mentionId"`
	Content   string          `json:"content"`
	Actor     types.Actor     `json:"actor"`
	IsIgnored bool            `json:"isIgnored,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

func (d replyTaskData) mentionID() int64 {
	id, _ := strconv.ParseInt(d.MentionID, 10, 64)
	return id
}

func newReplyTaskData(mentionID int64, content string, actor types.Actor) replyTaskData {
	return replyTaskData{
		MentionID: strconv.FormatInt(mentionID, 10),
		Content:   content,
		Actor:     actor,
	}
}

// fetchTaskData is the payload of fetch tasks. Posts holds the full post
// list while the task is open and collapses to bare post ids when the
// task finishes, with the flat comment list attached.
type fetchTaskData struct {
	Posts    json.RawMessage  `json:"posts"`
	Comments []social.Comment `json:"comments,omitempty"`
	Errors   []string         `json:"errors,omitempty"`
}

func newFetchTaskData(posts []social.Post) ([]byte, error) {
	raw, err := json.Marshal(posts)
	if err != nil {
		return nil, err
	}
	return json.Marshal(fetchTaskData{Posts: raw})
}

func (d fetchTaskData) posts() ([]social.Post, error) {
	var posts []social.Post
	if len(d.Posts) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(d.Posts, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// postIDs extracts the task's post ids whether the task is still open
// (full posts) or already collapsed (bare ids).
func (d fetchTaskData) postIDs() []string {
	var items []json.RawMessage
	if err := json.Unmarshal(d.Posts, &items); err != nil {
		return nil
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		var id string
		if err := json.Unmarshal(item, &id); err == nil {
			ids = append(ids, id)
			continue
		}
		var post social.Post
		if err := json.Unmarshal(item, &post); err == nil && post.ID != "" {
			ids = append(ids, post.ID)
		}
	}
	return ids
}

func finishedFetchTaskData(postIDs []string, comments []social.Comment, errs []string) ([]byte, error) {
	raw, err := json.Marshal(postIDs)
	if err != nil {
		return nil, err
	}
	return json.Marshal(fetchTaskData{Posts: raw, Comments: comments, Errors: errs})
}
