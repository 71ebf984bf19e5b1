package handlers

import (
	"fmt"
	"net/http"

	"anonlink/services"
	"anonlink/utils"

	"github.com/gin-gonic/gin"
)

// Public endpoints: the download token is the sole credential. Errors here
// never distinguish "wrong owner" from "does not exist".

func GetFileInfo(c *gin.Context) {
	token := c.Param("token")

	info, err := getServices().Access.PublicInfo(c.Request.Context(), token)
	if respondServiceError(c, err) {
		return
	}

	utils.Success(c, info)
}

func PublicDownload(c *gin.Context) {
	token := c.Param("token")

	file, rc, err := getServices().Access.ResolveAndConsume(c.Request.Context(), token, services.ClientInfo{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if respondServiceError(c, err) {
		return
	}
	defer rc.Close()

	extraHeaders := map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, file.OriginalName),
	}
	c.DataFromReader(http.StatusOK, file.FileSize, file.MimeType, rc, extraHeaders)
}

func PublicThumbnail(c *gin.Context) {
	token := c.Param("token")

	_, rc, err := getServices().Access.PublicThumbnail(c.Request.Context(), token)
	if respondServiceError(c, err) {
		return
	}
	defer rc.Close()

	c.Header("Cache-Control", "public, max-age=86400")
	c.DataFromReader(http.StatusOK, -1, "image/jpeg", rc, nil)
}
