package receipt

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"regexp"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/kvitto/internal/parsing"
)

// uploadBody builds a multipart body with one "file" part
func uploadBody(filename, contentType string, data []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(data)
	Expect(err).NotTo(HaveOccurred())
	Expect(writer.Close()).To(Succeed())
	return body, writer.FormDataContentType()
}

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		service = NewServiceWithDeps(db, newMockExtractor(), storage, parsing.NewParser(), &mockIDGenerator{}, &mockTimeSource{now: time.Now()})
		auth = BasicAuth{}
	})

	JustBeforeEach(func() {
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodOptions} {
			ghttpServer.RouteToHandler(method, regexp.MustCompile(`.*`), server.ServeHTTP)
		}
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	upload := func(filename, contentType string, data []byte) *http.Response {
		body, formType := uploadBody(filename, contentType, data)
		resp, err := http.Post(ghttpServer.URL()+"/api/receipts", formType, body)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, v any) {
		defer resp.Body.Close()
		Expect(json.NewDecoder(resp.Body).Decode(v)).To(Succeed())
	}

	Describe("POST /api/receipts", func() {
		When("the upload parses", func() {
			It("should return status Created with the receipt", func() {
				resp := upload("kvitto.txt", "text/plain", []byte(sampleReceipt))
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var receipt Receipt
				decode(resp, &receipt)
				Expect(receipt.ID).To(Equal("id-1"))
				Expect(receipt.Dataset.Metadata.Store).To(Equal("ICA Nära Testby"))
				Expect(receipt.Dataset.Items).To(HaveLen(2))
			})

			It("should guess the content type from the extension", func() {
				resp := upload("kvitto.txt", "", []byte(sampleReceipt))
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				Expect(db.receipts[0].ContentType).To(Equal("text/plain"))
			})
		})

		When("the same document is uploaded again", func() {
			It("should return status Conflict", func() {
				first := upload("kvitto.txt", "text/plain", []byte(sampleReceipt))
				first.Body.Close()
				Expect(first.StatusCode).To(Equal(http.StatusCreated))

				resp := upload("kopia.txt", "text/plain", []byte(sampleReceipt))
				Expect(resp.StatusCode).To(Equal(http.StatusConflict))

				var body map[string]string
				decode(resp, &body)
				Expect(body["error"]).To(ContainSubstring("id-1"))
				Expect(db.receipts).To(HaveLen(1))
			})
		})

		When("the receipt header is incomplete", func() {
			It("should return status Unprocessable Entity", func() {
				resp := upload("kvitto.txt", "text/plain", []byte("Kvitto\nICA\nDatum: 2024-03-15\n"))
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))

				var body map[string]string
				decode(resp, &body)
				Expect(body["error"]).To(ContainSubstring("time"))
			})
		})

		When("no file is sent", func() {
			It("should return status Bad Request", func() {
				body := &bytes.Buffer{}
				writer := multipart.NewWriter(body)
				Expect(writer.WriteField("other", "value")).To(Succeed())
				Expect(writer.Close()).To(Succeed())

				resp, err := http.Post(ghttpServer.URL()+"/api/receipts", writer.FormDataContentType(), body)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("the body is not a form", func() {
			It("should return status Bad Request", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/receipts", "application/json", bytes.NewBufferString("{}"))
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("receipt lookups", func() {
		var created *Receipt

		BeforeEach(func() {
			var err error
			created, err = service.ProcessReceipt("kvitto.txt", []byte(sampleReceipt), "text/plain")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should list receipt summaries", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var summaries []Summary
			decode(resp, &summaries)
			Expect(summaries).To(HaveLen(1))
			Expect(summaries[0].Store).To(Equal("ICA Nära Testby"))
			Expect(summaries[0].Items).To(Equal(2))
		})

		It("should return one receipt", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts/" + created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var receipt Receipt
			decode(resp, &receipt)
			Expect(receipt.Source).To(Equal("kvitto.txt"))
		})

		It("should return status Not Found for an unknown receipt", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts/missing")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("should return the original file", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts/" + created.ID + "/file")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/plain"))
			data, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal(sampleReceipt))
		})
	})

	Describe("corpus endpoints", func() {
		BeforeEach(func() {
			for _, text := range []string{
				receiptFor("ICA", "2024-03-01", "Milk", "15.90"),
				receiptFor("ICA", "2024-03-08", "Milk", "13.50"),
			} {
				_, err := service.ProcessReceipt("r.txt", []byte(text), "text/plain")
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("should list items in descending order by default", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/items")
			Expect(err).NotTo(HaveOccurred())

			var items []map[string]any
			decode(resp, &items)
			Expect(items).To(HaveLen(2))
			Expect(items[0]["line_total"]).To(Equal("15.9"))
			Expect(items[0]["store"]).To(Equal("ICA"))
		})

		It("should list items in ascending order", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/items?order=asc")
			Expect(err).NotTo(HaveOccurred())

			var items []map[string]any
			decode(resp, &items)
			Expect(items[0]["line_total"]).To(Equal("13.5"))
		})

		It("should reject an unknown order", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/items?order=sideways")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should return price ranges", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/price-ranges")
			Expect(err).NotTo(HaveOccurred())

			var ranges []map[string]any
			decode(resp, &ranges)
			Expect(ranges).To(HaveLen(1))
			Expect(ranges[0]["min_price"]).To(Equal("13.5"))
			Expect(ranges[0]["max_price"]).To(Equal("15.9"))
			Expect(ranges[0]["observations"]).To(BeNumerically("==", 2))
		})

		It("should return totals", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/totals")
			Expect(err).NotTo(HaveOccurred())

			var totals map[string]any
			decode(resp, &totals)
			Expect(totals["items"]).To(BeNumerically("==", 2))
			Expect(totals["net"]).To(Equal("29.4"))
			Expect(totals["anomalies"]).To(BeEmpty())
		})

		It("should stream the corpus as CSV", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/corpus.csv")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/csv"))
			data, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(HavePrefix("discounted,name,barcode"))
		})
	})

	Describe("authentication", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "user", Password: "secret"}
		})

		It("should reject requests without credentials", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})

		It("should reject wrong credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/receipts", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("user", "wrong")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("should accept the right credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/receipts", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("user", "secret")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("CORS", func() {
		It("should answer preflight requests", func() {
			req, err := http.NewRequest(http.MethodOptions, ghttpServer.URL()+"/api/receipts", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("POST"))
		})
	})
})
