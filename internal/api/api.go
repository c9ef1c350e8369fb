package api

import (
	"net/http"

	models "github.com/atlasprotect/atlas/internal"
	"github.com/atlasprotect/atlas/internal/ports"
	"github.com/atlasprotect/atlas/internal/utils"
)

// BucketReader is the slice of the tracker the status handler needs.
type BucketReader interface {
	Bucket(b models.StatusBucket) []models.Booking
}

type statusResponse struct {
	Connection models.ConnectionState `json:"connection"`
	Upcoming   int                    `json:"upcoming"`
	Past       int                    `json:"past"`
	Cancelled  int                    `json:"cancelled"`
}

// StatusHandler exposes the tracker's bucket counts and the realtime
// connection state on the local diagnostics endpoint.
func StatusHandler(t BucketReader, connState func() models.ConnectionState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := statusResponse{
			Connection: connState(),
			Upcoming:   len(t.Bucket(models.BucketUpcoming)),
			Past:       len(t.Bucket(models.BucketPast)),
			Cancelled:  len(t.Bucket(models.BucketCancelled)),
		}
		utils.RenderResponse(w, http.StatusOK, res)
	}
}

// AssetsHandler proxies the asset catalog onto the diagnostics endpoint,
// honouring the same category and isAvailable query params as the
// backend listing.
func AssetsHandler(catalog ports.AssetCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := models.AssetFilter{
			Category:      models.AssetCategory(r.URL.Query().Get("category")),
			OnlyAvailable: r.URL.Query().Get("isAvailable") == "true",
		}
		if filter.Category != "" && !filter.Category.Valid() {
			ae := utils.NewBadRequest("unknown asset category")
			utils.RenderResponse(w, ae.StatusCode, ae)
			return
		}

		assets, err := catalog.ListAssets(r.Context(), filter)
		if err != nil {
			ae := utils.NewInternalServerError(err.Error())
			utils.RenderResponse(w, ae.StatusCode, ae)
			return
		}
		utils.RenderResponse(w, http.StatusOK, assets)
	}
}
