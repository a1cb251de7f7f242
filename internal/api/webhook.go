package api

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mergelens/pkg/models"
)

// gitlabWebhook is the subset of GitLab's merge request event payload
// the server needs.
type gitlabWebhook struct {
	ObjectKind string `json:"object_kind"`
	Project    struct {
		ID                int    `json:"id"`
		PathWithNamespace string `json:"path_with_namespace"`
	} `json:"project"`
	ObjectAttributes struct {
		IID        int    `json:"iid"`
		Action     string `json:"action"`
		State      string `json:"state"`
		LastCommit struct {
			ID string `json:"id"`
		} `json:"last_commit"`
	} `json:"object_attributes"`
	User struct {
		Username string `json:"username"`
	} `json:"user"`
}

// reviewableActions are the MR actions that trigger a review. Merges,
// closes, and approval events pass through untouched.
var reviewableActions = map[string]bool{
	"open":   true,
	"update": true,
	"reopen": true,
}

// validate checks the fields a review cannot start without and returns
// every violation at once.
func (w *gitlabWebhook) validate() error {
	var missing []string
	if w.Project.ID == 0 {
		missing = append(missing, "project.id")
	}
	if w.ObjectAttributes.IID == 0 {
		missing = append(missing, "object_attributes.iid")
	}
	if w.ObjectAttributes.LastCommit.ID == "" {
		missing = append(missing, "object_attributes.last_commit.id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required webhook fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (w *gitlabWebhook) reviewRequest() models.ReviewRequest {
	return models.ReviewRequest{
		ProjectID: strconv.Itoa(w.Project.ID),
		MRIID:     w.ObjectAttributes.IID,
		HeadSHA:   w.ObjectAttributes.LastCommit.ID,
		Author:    w.User.Username,
	}
}
