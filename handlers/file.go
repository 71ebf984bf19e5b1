package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"anonlink/services"
	"anonlink/utils"

	"github.com/gin-gonic/gin"
)

func ListFiles(c *gin.Context) {
	userID := c.GetUint("user_id")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "0"))

	out, err := getServices().File.ListFiles(c.Request.Context(), userID, page, pageSize)
	if respondServiceError(c, err) {
		return
	}

	utils.Success(c, out)
}

func UploadFile(c *gin.Context) {
	userID := c.GetUint("user_id")

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	in := services.UploadInput{
		Reader:       file,
		OriginalName: header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
		Size:         header.Size,
	}

	if raw := c.PostForm("ttl_hours"); raw != "" {
		ttl, err := strconv.Atoi(raw)
		if err != nil {
			utils.Error(c, http.StatusBadRequest, "invalid ttl_hours")
			return
		}
		in.TTLHours = &ttl
	}
	if raw := c.PostForm("max_downloads"); raw != "" {
		max, err := strconv.Atoi(raw)
		if err != nil {
			utils.Error(c, http.StatusBadRequest, "invalid max_downloads")
			return
		}
		in.MaxDownloads = &max
	}

	created, err := getServices().File.Upload(c.Request.Context(), userID, in)
	if respondServiceError(c, err) {
		return
	}

	utils.SuccessWithMessage(c, "file uploaded", created)
}

func DeleteFile(c *gin.Context) {
	userID := c.GetUint("user_id")
	fileID := c.Param("id")

	if err := getServices().File.Delete(c.Request.Context(), userID, fileID); respondServiceError(c, err) {
		return
	}

	utils.SuccessWithMessage(c, "file deleted", nil)
}

func RegenerateLink(c *gin.Context) {
	userID := c.GetUint("user_id")
	fileID := c.Param("id")

	file, err := getServices().File.RegenerateToken(c.Request.Context(), userID, fileID)
	if respondServiceError(c, err) {
		return
	}

	utils.SuccessWithMessage(c, "new share link generated", file)
}

func DownloadFile(c *gin.Context) {
	userID := c.GetUint("user_id")
	fileID := c.Param("id")

	file, rc, err := getServices().File.OwnerDownload(c.Request.Context(), userID, fileID)
	if respondServiceError(c, err) {
		return
	}
	defer rc.Close()

	extraHeaders := map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, file.OriginalName),
	}
	c.DataFromReader(http.StatusOK, file.FileSize, file.MimeType, rc, extraHeaders)
}
