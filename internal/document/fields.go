package document

// Fields is an update body keyed by the backend's wire names.
type Fields map[string]interface{}

// Updatable lists the only keys a partial update may carry.
var Updatable = []string{"title", "description", "status", "current_reviewer_id"}

// Allow copies the updatable keys of in and drops everything else.
func Allow(in map[string]interface{}) Fields {
	out := make(Fields, len(Updatable))
	for _, k := range Updatable {
		if v, ok := in[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Diff returns the updatable fields whose value differs between before and
// after. A cleared reviewer is sent as null.
func Diff(before, after Document) Fields {
	out := Fields{}
	if before.Title != after.Title {
		out["title"] = after.Title
	}
	if before.Description != after.Description {
		out["description"] = after.Description
	}
	if before.Status != after.Status {
		out["status"] = string(after.Status)
	}
	if !sameID(before.CurrentReviewerID, after.CurrentReviewerID) {
		if after.CurrentReviewerID == nil {
			out["current_reviewer_id"] = nil
		} else {
			out["current_reviewer_id"] = *after.CurrentReviewerID
		}
	}
	return out
}

func sameID(a, b *ID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
