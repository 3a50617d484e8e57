package receipt

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/zombor/kvitto/internal/parsing"
)

func storedReceipt(id, store string) *Receipt {
	label := "Weekly offer"
	return &Receipt{
		ID:          id,
		Source:      id + ".pdf",
		Filename:    id + "_receipt.pdf",
		ContentType: "application/pdf",
		Dataset: &parsing.Dataset{
			Metadata: parsing.Metadata{Store: store, Date: "2024-03-15", Time: "17:42"},
			Items: []parsing.ItemRecord{{
				Discounted:     true,
				Name:           "Butter",
				Barcode:        "7300098765432",
				UnitPrice:      decimal.RequireFromString("45.00"),
				Quantity:       decimal.RequireFromString("1.00"),
				Unit:           "st",
				LineTotal:      decimal.RequireFromString("45.00"),
				DiscountLabel:  &label,
				DiscountAmount: decimal.RequireFromString("10.00"),
			}},
		},
		Diagnostics: &parsing.Diagnostics{Matched: 1},
		CreatedAt:   time.Date(2024, 3, 16, 9, 0, 0, 0, time.UTC),
	}
}

var _ = Describe("BoltDB", func() {
	var (
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveReceipt", func() {
		var (
			receipt *Receipt
			err     error
		)

		BeforeEach(func() {
			receipt = storedReceipt("first", "ICA")
		})

		JustBeforeEach(func() {
			err = db.SaveReceipt(receipt)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should assign the first sequence number", func() {
				Expect(receipt.Seq).To(Equal(uint64(1)))
			})

			It("should round trip the parsed dataset", func() {
				got, getErr := db.GetReceipt("first")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(got.Seq).To(Equal(uint64(1)))
				Expect(got.Dataset.Metadata).To(Equal(receipt.Dataset.Metadata))
				item := got.Dataset.Items[0]
				Expect(item.NetTotal().String()).To(Equal("35"))
				Expect(*item.DiscountLabel).To(Equal("Weekly offer"))
				Expect(got.Diagnostics.Matched).To(Equal(1))
				Expect(got.CreatedAt.Equal(receipt.CreatedAt)).To(BeTrue())
			})
		})

		When("the id already exists", func() {
			BeforeEach(func() {
				Expect(db.SaveReceipt(storedReceipt("first", "Coop"))).To(Succeed())
			})

			It("returns the error", func() {
				Expect(err).To(MatchError(ContainSubstring("already exists")))
			})
		})
	})

	Describe("GetReceipt", func() {
		When("the receipt does not exist", func() {
			It("returns the error", func() {
				_, err := db.GetReceipt("missing")
				Expect(err).To(MatchError(ErrNotFound))
			})
		})
	})

	Describe("FindByDigest", func() {
		BeforeEach(func() {
			saved := storedReceipt("r1", "ICA")
			saved.Digest = "abc123"
			Expect(db.SaveReceipt(saved)).To(Succeed())
			Expect(db.SaveReceipt(storedReceipt("r2", "Coop"))).To(Succeed())
		})

		It("should return the receipt stored for the digest", func() {
			receipt, err := db.FindByDigest("abc123")
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.ID).To(Equal("r1"))
			Expect(receipt.Digest).To(Equal("abc123"))
		})

		It("should still find it after reopening", func() {
			Expect(db.Close()).To(Succeed())
			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())

			receipt, err := db.FindByDigest("abc123")
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.ID).To(Equal("r1"))
		})

		When("no receipt has the digest", func() {
			It("returns the error", func() {
				_, err := db.FindByDigest("missing")
				Expect(err).To(MatchError(ErrNotFound))
			})
		})

		When("the digest is empty", func() {
			It("returns the error", func() {
				_, err := db.FindByDigest("")
				Expect(err).To(MatchError(ErrNotFound))
			})
		})
	})

	Describe("ListReceipts", func() {
		When("the database is empty", func() {
			It("should return an empty list", func() {
				receipts, err := db.ListReceipts()
				Expect(err).NotTo(HaveOccurred())
				Expect(receipts).To(BeEmpty())
			})
		})

		When("receipts are saved", func() {
			BeforeEach(func() {
				// ids sort in the opposite order of saving
				for _, id := range []string{"zz", "mm", "aa"} {
					Expect(db.SaveReceipt(storedReceipt(id, "Store "+id))).To(Succeed())
				}
			})

			It("should list them in save order", func() {
				receipts, err := db.ListReceipts()
				Expect(err).NotTo(HaveOccurred())
				Expect(receipts).To(HaveLen(3))
				Expect(receipts[0].ID).To(Equal("zz"))
				Expect(receipts[1].ID).To(Equal("mm"))
				Expect(receipts[2].ID).To(Equal("aa"))
				Expect(receipts[2].Seq).To(Equal(uint64(3)))
			})

			It("should keep the order after reopening", func() {
				Expect(db.Close()).To(Succeed())
				var err error
				db, err = NewBoltDB(dbPath)
				Expect(err).NotTo(HaveOccurred())

				Expect(db.SaveReceipt(storedReceipt("bb", "Store bb"))).To(Succeed())
				receipts, err := db.ListReceipts()
				Expect(err).NotTo(HaveOccurred())
				Expect(receipts).To(HaveLen(4))
				Expect(receipts[3].ID).To(Equal("bb"))
				Expect(receipts[3].Seq).To(Equal(uint64(4)))
			})
		})
	})
})
