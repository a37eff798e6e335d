package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/taajiri/pawnshop_backend/models"
	"github.com/taajiri/pawnshop_backend/utils"
)

const maxUploadBytes = 10 << 20 // 10 MB

const thumbnailMaxDim = 320

var agreementContentTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

var photoContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

func readUploadedFile(c *gin.Context, field string, allowed map[string]string) (data []byte, ext string, contentType string, err error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		return nil, "", "", fmt.Errorf("%s file is required", field)
	}
	if fileHeader.Size > maxUploadBytes {
		return nil, "", "", fmt.Errorf("file exceeds the %d MB limit", maxUploadBytes>>20)
	}
	ext = strings.ToLower(filepath.Ext(fileHeader.Filename))
	contentType, ok := allowed[ext]
	if !ok {
		return nil, "", "", fmt.Errorf("unsupported file type %q", ext)
	}
	f, err := fileHeader.Open()
	if err != nil {
		return nil, "", "", err
	}
	defer f.Close()
	data, err = io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return nil, "", "", err
	}
	if len(data) > maxUploadBytes {
		return nil, "", "", fmt.Errorf("file exceeds the %d MB limit", maxUploadBytes>>20)
	}
	return data, ext, contentType, nil
}

// uploadAgreementHandler receives the scanned signed agreement, stores it in
// GCS, and moves the loan's agreement to pending_approval.
func uploadAgreementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		data, ext, contentType, err := readUploadedFile(c, "document", agreementContentTypes)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		objectName := fmt.Sprintf("agreements/%d/%s%s", id, uuid.NewString(), ext)
		if err := utils.UploadBytesToGCS(c.Request.Context(), objectName, data, contentType); err != nil {
			respondError(c, err)
			return
		}

		loan, err := models.AttachAgreementDocument(c.Request.Context(), id, utils.PublicObjectURL(objectName))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, loan)
	}
}

// uploadCollateralPhotoHandler stores the item photo plus a generated
// thumbnail for list views.
func uploadCollateralPhotoHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		data, ext, contentType, err := readUploadedFile(c, "photo", photoContentTypes)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, span := tracer.Start(c.Request.Context(), "collateralPhoto.process")
		defer span.End()

		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is not a decodable image"})
			return
		}
		thumb := imaging.Fit(img, thumbnailMaxDim, thumbnailMaxDim, imaging.Lanczos)
		var thumbBuf bytes.Buffer
		if err := imaging.Encode(&thumbBuf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
			respondError(c, err)
			return
		}

		stamp := time.Now().UTC().Format("20060102T150405")
		photoObject := fmt.Sprintf("collaterals/%d/%s%s", id, stamp, ext)
		thumbObject := fmt.Sprintf("collaterals/%d/%s_thumb.jpg", id, stamp)

		if err := utils.UploadBytesToGCS(ctx, photoObject, data, contentType); err != nil {
			respondError(c, err)
			return
		}
		if err := utils.UploadBytesToGCS(ctx, thumbObject, thumbBuf.Bytes(), "image/jpeg"); err != nil {
			respondError(c, err)
			return
		}

		collateral, err := models.UpdateCollateralPhoto(ctx, id,
			utils.PublicObjectURL(photoObject), utils.PublicObjectURL(thumbObject))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, collateral)
	}
}
