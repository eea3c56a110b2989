package extraction

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var allowedExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "pdf": true,
}

const (
	noTextExtracted = "No text extracted"
	unprocessable   = "Unable to process prescription text"

	stubStructuredText = `*Patient Information*:
- Name: John Doe
- Age: 45
- Gender: Male

*Doctor Information*:
- Name: Dr. Emily Chen
- Clinic: City Medical Center

*Medications*:
- Amoxicillin 500mg
- Frequency: 3 times daily
- Duration: 7 days

*Special Instructions*:
- Take with food
- Avoid alcohol`
)

// NewStubHandler serves a stand-in for the extraction service so the intake
// API can be run without OCR. Only the first "file" part is examined. Text
// content is echoed as the extracted text; anything else has no text.
func NewStubHandler(log *zap.Logger) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "Backend is running"})
	})

	r.POST(uploadPath, func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil || len(form.File[fileField]) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file part"})
			return
		}

		fh := form.File[fileField][0]
		if fh.Filename == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No selected file"})
			return
		}
		if !allowedFile(fh.Filename) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "File type not allowed"})
			return
		}

		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		extracted := extractText(data)
		structured := stubStructuredText
		if extracted == noTextExtracted {
			structured = unprocessable
		}

		name := filepath.Base(fh.Filename)
		log.Info("stub extraction",
			zap.String("filename", name),
			zap.Int("bytes", len(data)),
			zap.Int("parts", len(form.File[fileField])),
		)

		c.JSON(http.StatusOK, gin.H{
			"filename":        name,
			"extracted_text":  extracted,
			"structured_text": structured,
		})
	})

	return r
}

func allowedFile(name string) bool {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return false
	}
	return allowedExtensions[strings.ToLower(name[i+1:])]
}

func extractText(data []byte) string {
	if !strings.HasPrefix(mimetype.Detect(data).String(), "text/") {
		return noTextExtracted
	}
	if text := strings.TrimSpace(string(data)); text != "" {
		return text
	}
	return noTextExtracted
}
