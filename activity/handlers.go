package activity

import (
	"net/http"

	"goimomi/utils"

	"github.com/julienschmidt/httprouter"
)

// RecentHandler lists the latest events, newest first, paged by ?page= and ?limit=.
func RecentHandler(store Store) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		opts := utils.ParseQueryOptions(r)
		events, err := store.Recent(r.Context(), opts.Offset(), opts.Limit)
		if err != nil {
			utils.RespondInternal(w, "fetch activity", err)
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, events)
	}
}
