package receipt

import (
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(filepath.Join(tmpDir, "images"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should create the directory", func() {
		info, err := os.Stat(filepath.Join(tmpDir, "images"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
	})

	Describe("Save", func() {
		It("should write the file", func() {
			Expect(storage.Save("receipt-1.img", []byte("image data"))).To(Succeed())
			data, err := os.ReadFile(filepath.Join(tmpDir, "images", "receipt-1.img"))
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("image data")))
		})

		It("should replace an existing file", func() {
			Expect(storage.Save("receipt-1.img", []byte("old"))).To(Succeed())
			Expect(storage.Save("receipt-1.img", []byte("new"))).To(Succeed())
			data, err := storage.Get("receipt-1.img")
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("new")))
		})

		It("should leave no temporary files behind", func() {
			Expect(storage.Save("receipt-1.img", []byte("image data"))).To(Succeed())
			entries, err := os.ReadDir(filepath.Join(tmpDir, "images"))
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
		})

		It("should reject names outside the directory", func() {
			Expect(storage.Save("../escape.img", []byte("x"))).To(MatchError(ContainSubstring("invalid file name")))
			Expect(storage.Save("", []byte("x"))).To(HaveOccurred())
			_, err := os.Stat(filepath.Join(tmpDir, "escape.img"))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})
	})

	Describe("Get", func() {
		It("should report a missing file as not found", func() {
			_, err := storage.Get("missing.img")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})

	Describe("Delete", func() {
		It("should remove the file", func() {
			Expect(storage.Save("receipt-1.img", []byte("image data"))).To(Succeed())
			Expect(storage.Delete("receipt-1.img")).To(Succeed())
			_, err := storage.Get("receipt-1.img")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})

		It("should fail for a missing file", func() {
			Expect(storage.Delete("missing.img")).To(MatchError(ContainSubstring("deleting file")))
		})
	})
})
