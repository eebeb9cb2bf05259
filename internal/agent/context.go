package agent

import (
	"github.com/reserva-ai/commerce-platform/internal/model"
)

// MergeContext folds successful function results into the conversation
// context. Pure: the input is never mutated, and the second return reports
// whether anything changed. Only the keys a result touches are updated.
func MergeContext(old model.ConversationContext, results []model.FunctionResult) (model.ConversationContext, bool) {
	next := cloneContext(old)
	changed := false

	for _, res := range results {
		if !res.Success || res.Data == nil {
			continue
		}
		switch res.FunctionName {
		case "search_properties":
			if filters, ok := res.Data["filters"].(map[string]any); ok {
				next.CurrentSearchFilters = filters
				changed = true
			}
		case "get_property_details", "send_property_media":
			if id := propertyID(res.Data); id != "" && !contains(next.InterestedPropertyIDs, id) {
				next.InterestedPropertyIDs = append(next.InterestedPropertyIDs, id)
				changed = true
			}
		case "create_reservation":
			if pr := pendingFromReservation(res.Data); pr != nil {
				next.PendingReservation = pr
				changed = true
			}
		case "create_payment_request":
			// A generated charge keeps the pending reservation in context so
			// followups about payment keep their referent.
		}
	}
	return next, changed
}

func cloneContext(c model.ConversationContext) model.ConversationContext {
	out := model.ConversationContext{}
	if c.CurrentSearchFilters != nil {
		out.CurrentSearchFilters = make(map[string]any, len(c.CurrentSearchFilters))
		for k, v := range c.CurrentSearchFilters {
			out.CurrentSearchFilters[k] = v
		}
	}
	if c.InterestedPropertyIDs != nil {
		out.InterestedPropertyIDs = append([]string(nil), c.InterestedPropertyIDs...)
	}
	if c.PendingReservation != nil {
		pr := *c.PendingReservation
		out.PendingReservation = &pr
	}
	return out
}

func propertyID(data map[string]any) string {
	if prop, ok := data["property"].(map[string]any); ok {
		if id, ok := prop["id"].(string); ok {
			return id
		}
	}
	if id, ok := data["property_id"].(string); ok {
		return id
	}
	return ""
}

func pendingFromReservation(data map[string]any) *model.PendingReservation {
	res, ok := data["reservation"].(map[string]any)
	if !ok {
		return nil
	}
	id, _ := res["id"].(string)
	if id == "" {
		return nil
	}
	pr := &model.PendingReservation{ReservationID: id}
	pr.PropertyID, _ = res["property_id"].(string)
	pr.CheckIn, _ = res["check_in"].(string)
	pr.CheckOut, _ = res["check_out"].(string)
	pr.TotalAmount, _ = res["total_amount"].(float64)
	return pr
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
