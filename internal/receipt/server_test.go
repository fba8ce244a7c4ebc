package receipt

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/receipt-pipeline/internal/catalog"
	"github.com/zombor/receipt-pipeline/internal/extraction"
	"github.com/zombor/receipt-pipeline/internal/pipeline"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		pipe        *mockPipeline
		products    *mockCatalog
		auth        BasicAuth
		metrics     http.Handler
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		pipe = &mockPipeline{outcome: successOutcome("receipt-1")}
		products = newMockCatalog()
		auth = BasicAuth{}
		metrics = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("receipt_pipeline_runs_total 1\n"))
		})
	})

	JustBeforeEach(func() {
		service := NewServiceWithDeps(db, pipe, storage, products, fixedClock{testTime})
		server := NewServerWithMux(service, auth, metrics, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	do := func(method, path, contentType string, body io.Reader) *http.Response {
		req, err := http.NewRequest(method, ghttpServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(resp.Body.Close)
		return resp
	}

	decode := func(resp *http.Response, v any) {
		Expect(json.NewDecoder(resp.Body).Decode(v)).To(Succeed())
	}

	jsonBody := func(v any) io.Reader {
		data, err := json.Marshal(v)
		Expect(err).NotTo(HaveOccurred())
		return bytes.NewReader(data)
	}

	Describe("POST /api/scans", func() {
		When("a JSON request succeeds", func() {
			var resp *http.Response

			JustBeforeEach(func() {
				resp = do("POST", "/api/scans", "application/json", jsonBody(ScanRequest{
					ImageBase64: pngBase64(),
					UserID:      "user-1",
					UserCity:    "Lubumbashi",
				}))
			})

			It("should return status Created", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
			})

			It("should return the receipt in the pipeline shape", func() {
				var body map[string]any
				decode(resp, &body)
				Expect(body["success"]).To(BeTrue())
				Expect(body).NotTo(HaveKey("error"))
				receipt := body["receipt"].(map[string]any)
				Expect(receipt["id"]).To(Equal("receipt-1"))
				Expect(receipt["merchant_name"]).To(Equal("Shoprite"))
				Expect(receipt["extraction_method"]).To(Equal("local"))
				Expect(receipt["user_id"]).To(Equal("user-1"))
				Expect(receipt["product_matches"]).To(HaveLen(2))
			})

			It("should pass the city to the pipeline", func() {
				Expect(pipe.userCity).To(Equal("Lubumbashi"))
			})
		})

		When("a multipart upload succeeds", func() {
			It("should scan the uploaded file", func() {
				var buf bytes.Buffer
				mw := multipart.NewWriter(&buf)
				fw, err := mw.CreateFormFile("file", "receipt.png")
				Expect(err).NotTo(HaveOccurred())
				_, err = fw.Write(pngBytes())
				Expect(err).NotTo(HaveOccurred())
				Expect(mw.WriteField("user_id", "user-2")).To(Succeed())
				Expect(mw.Close()).To(Succeed())

				resp := do("POST", "/api/scans", mw.FormDataContentType(), &buf)
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				Expect(pipe.userID).To(Equal("user-2"))
				Expect(storage.files).To(HaveKeyWithValue("receipt-1.img", pngBytes()))
			})
		})

		When("the multipart form has no file", func() {
			It("should return status Bad Request", func() {
				var buf bytes.Buffer
				mw := multipart.NewWriter(&buf)
				Expect(mw.WriteField("user_id", "user-2")).To(Succeed())
				Expect(mw.Close()).To(Succeed())

				resp := do("POST", "/api/scans", mw.FormDataContentType(), &buf)
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("the body is not JSON", func() {
			It("should return status Bad Request", func() {
				resp := do("POST", "/api/scans", "application/json", strings.NewReader("{"))
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("the user id is missing", func() {
			It("should return status Bad Request without scanning", func() {
				resp := do("POST", "/api/scans", "application/json", jsonBody(ScanRequest{ImageBase64: pngBase64()}))
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				var body scanResponse
				decode(resp, &body)
				Expect(body.Success).To(BeFalse())
				Expect(body.Error).To(ContainSubstring("user_id is required"))
				Expect(pipe.calls).To(BeZero())
			})
		})

		When("the pipeline fails", func() {
			BeforeEach(func() {
				pipe.outcome = &pipeline.Outcome{
					Result: extraction.Failed("Receipt processing failed. Please try again with a clearer photo."),
					Err:    pipeline.ErrBothMethodsFailed,
				}
			})

			It("should return status Unprocessable Entity with the pipeline message", func() {
				resp := do("POST", "/api/scans", "application/json", jsonBody(ScanRequest{ImageBase64: pngBase64(), UserID: "user-1"}))
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
				var body scanResponse
				decode(resp, &body)
				Expect(body.Success).To(BeFalse())
				Expect(body.Receipt).To(BeNil())
				Expect(body.Error).To(Equal("Receipt processing failed. Please try again with a clearer photo."))
			})
		})
	})

	Describe("GET /api/receipts", func() {
		BeforeEach(func() {
			db.receipts["a"] = &StoredReceipt{FinalReceipt: finalReceipt("a", testTime), UserID: "user-1"}
			db.receipts["b"] = &StoredReceipt{FinalReceipt: finalReceipt("b", testTime), UserID: "user-2"}
		})

		It("should return all receipts", func() {
			resp := do("GET", "/api/receipts", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var receipts []*StoredReceipt
			decode(resp, &receipts)
			Expect(receipts).To(HaveLen(2))
		})

		It("should filter by user", func() {
			resp := do("GET", "/api/receipts?user_id=user-2", "", nil)
			var receipts []*StoredReceipt
			decode(resp, &receipts)
			Expect(receipts).To(HaveLen(1))
			Expect(receipts[0].ID).To(Equal("b"))
		})

		When("no receipts exist", func() {
			BeforeEach(func() {
				db.receipts = map[string]*StoredReceipt{}
			})

			It("should return an empty array", func() {
				resp := do("GET", "/api/receipts", "", nil)
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(strings.TrimSpace(string(body))).To(Equal("[]"))
			})
		})
	})

	Describe("GET /api/receipts/{id}", func() {
		BeforeEach(func() {
			db.receipts["a"] = &StoredReceipt{FinalReceipt: finalReceipt("a", testTime)}
		})

		It("should return the receipt", func() {
			resp := do("GET", "/api/receipts/a", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var receipt StoredReceipt
			decode(resp, &receipt)
			Expect(receipt.ID).To(Equal("a"))
			Expect(receipt.TotalAmount).To(Equal(13.0))
		})

		It("should return status Not Found for an unknown id", func() {
			resp := do("GET", "/api/receipts/missing", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /api/receipts/{id}/image", func() {
		BeforeEach(func() {
			db.receipts["a"] = &StoredReceipt{FinalReceipt: finalReceipt("a", testTime), ImageFile: "a.img", ContentType: "image/png"}
			storage.files["a.img"] = pngBytes()
		})

		It("should return the image with its content type", func() {
			resp := do("GET", "/api/receipts/a/image", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(Equal(pngBytes()))
		})

		It("should return status Not Found for an unknown id", func() {
			resp := do("GET", "/api/receipts/missing/image", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("DELETE /api/receipts/{id}", func() {
		BeforeEach(func() {
			db.receipts["a"] = &StoredReceipt{FinalReceipt: finalReceipt("a", testTime), ImageFile: "a.img"}
		})

		It("should return status No Content", func() {
			resp := do("DELETE", "/api/receipts/a", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.receipts).To(BeEmpty())
		})

		It("should return status Not Found for an unknown id", func() {
			resp := do("DELETE", "/api/receipts/missing", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /api/corrections", func() {
		BeforeEach(func() {
			db.corrections = []*pipeline.CorrectionDiff{{ID: "d1", CloudMerchant: "Shoprite"}, {ID: "d2"}}
		})

		It("should return the diffs", func() {
			resp := do("GET", "/api/corrections?limit=1", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var diffs []*pipeline.CorrectionDiff
			decode(resp, &diffs)
			Expect(diffs).To(HaveLen(1))
			Expect(diffs[0].CloudMerchant).To(Equal("Shoprite"))
		})

		It("should reject a bad limit", func() {
			resp := do("GET", "/api/corrections?limit=abc", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/products/search", func() {
		BeforeEach(func() {
			products.results = []catalog.SearchResult{{
				Product: catalog.Product{ProductID: "PROD_020", NormalizedName: "tomato", Category: "Vegetables"},
				Score:   1,
			}}
		})

		It("should return ranked products", func() {
			resp := do("GET", "/api/products/search?q=tomate&limit=3", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var results []map[string]any
			decode(resp, &results)
			Expect(results).To(HaveLen(1))
			Expect(results[0]["product_id"]).To(Equal("PROD_020"))
			Expect(results[0]["match_score"]).To(Equal(1.0))
			Expect(products.limit).To(Equal(3))
		})

		It("should require a query", func() {
			resp := do("GET", "/api/products/search", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /api/products/mappings", func() {
		It("should learn the mapping", func() {
			resp := do("POST", "/api/products/mappings", "application/json",
				jsonBody(map[string]string{"raw_name": "Chikwangue", "product_id": "PROD_061"}))
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(products.learned).To(HaveKeyWithValue("Chikwangue", "PROD_061"))
		})

		When("the product is unknown", func() {
			BeforeEach(func() {
				products.learnErr = catalog.ErrUnknownProduct
			})

			It("should return status Not Found", func() {
				resp := do("POST", "/api/products/mappings", "application/json",
					jsonBody(map[string]string{"raw_name": "Chikwangue", "product_id": "PROD_999"}))
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})

		It("should reject missing fields", func() {
			resp := do("POST", "/api/products/mappings", "application/json", jsonBody(map[string]string{"raw_name": "x"}))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /healthz", func() {
		It("should report ok", func() {
			resp := do("GET", "/healthz", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("GET /metrics", func() {
		It("should serve the metrics handler", func() {
			resp := do("GET", "/metrics", "", nil)
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("receipt_pipeline_runs_total"))
		})
	})

	Describe("CORS", func() {
		It("should answer preflight requests", func() {
			resp := do("OPTIONS", "/api/scans", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})

		It("should set headers on normal responses", func() {
			resp := do("GET", "/healthz", "", nil)
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("DELETE"))
		})
	})

	Describe("authentication", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
		})

		It("should reject requests without credentials", func() {
			resp := do("GET", "/api/receipts", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("should accept the right credentials", func() {
			req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/receipts", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("admin", "secret")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should reject the wrong password", func() {
			req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/receipts", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("admin", "wrong")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("should leave the health check open", func() {
			resp := do("GET", "/healthz", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})
