package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

func downloadHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		if cfg.RedirectDownloads {
			link, err := cfg.Downloads.Link(c.Request.Context(), c.Param("token"))
			if err != nil {
				respondError(c, err)
				return
			}
			c.Redirect(http.StatusFound, link.URL)
			return
		}

		f, err := cfg.Downloads.Open(c.Request.Context(), c.Param("token"))
		if err != nil {
			respondError(c, err)
			return
		}
		defer f.Body.Close()

		c.DataFromReader(http.StatusOK, f.ContentLength, f.ContentType, f.Body, map[string]string{
			"Content-Disposition": fmt.Sprintf("attachment; filename=%q", f.Filename),
		})
	}
}
