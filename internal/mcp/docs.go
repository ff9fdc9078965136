package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `studytrack records study sessions and reports on them.

A user has at most one session in flight. It is active, on a break, or
ended. Breaks open on their own after 5 minutes without activity and the
session ends on its own after 30 minutes without activity (server defaults).

Workflow:
1) start_session when the user begins studying (activity_type is optional).
2) record_activity for each note created, file uploaded, AI query or piece of
   content viewed. Any activity ends an open break.
3) pause_session / resume_session for explicit breaks.
4) end_session when done. Ended sessions are synced in the background.

Reads: get_current_session, list_sessions, get_analytics, get_streaks,
get_insights, get_report. Calls that make no sense in the current state
return INVALID_TRANSITION or NO_ACTIVE_SESSION and change nothing.

Docs: studytrack://docs/guide
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "studytrack://docs/guide",
		Name:        "guide",
		Title:       "studytrack guide",
		Description: "Session lifecycle, activity payloads, scoring and analytics definitions.",
		Content: `# studytrack guide

## Session lifecycle

    idle --start--> active --pause/inactivity--> on_break
    on_break --resume/activity--> active
    active|on_break --end/auto-end--> ended

Starting while a session is in flight ends that session at the current time
and starts a fresh one, so nothing is lost from history.

An automatic break starts at the moment the inactivity threshold was
crossed, not when it was noticed. An automatic end is stamped at last
activity plus the auto-end threshold.

## Activity payloads

| type | useful data keys |
|---|---|
| note_created | wordCount, category, tags (list of strings) |
| file_uploaded | category, tags |
| ai_query | category, tags |
| content_viewed | category, tags |

Categories and tags feed the knowledge areas in get_insights. Only notes
count towards words written.

## Productivity score

A 0-100 score computed the same way everywhere. 70 points come from the
share of the session not spent on breaks and 30 from activity density,
which is full at 10 activities per minute.

## Analytics

- get_analytics: minutes and session counts per day (YYYY-MM-DD), ISO week
  (YYYY-Www) and month (YYYY-MM), keyed by the local start day.
- get_streaks: consecutive local days with at least one session. The
  current streak counts back from today, or from yesterday when today has
  no session yet.
- get_insights: best hour of day and weekday by minutes, average session
  length, minutes per activity type and per knowledge area.
- get_report: all of the above plus the average productivity score.

window_days defaults to the server setting (30 days); a negative value
includes all history.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
