package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

var samplePNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R', 0, 0, 0, 1, 0, 0, 0, 1, 8, 2, 0, 0, 0}

func testKey() []byte { return bytes.Repeat([]byte{0x42}, 32) }

func newTestStorage(t *testing.T, encrypt bool) *Storage {
	t.Helper()
	var key []byte
	if encrypt {
		key = testKey()
	}
	st, err := New(t.TempDir(), key, encrypt, logrus.New())
	require.NoError(t, err)
	return st
}

func TestSaveCertificatePlain(t *testing.T) {
	st := newTestStorage(t, false)
	saved, err := st.Save(bytes.NewReader(samplePDF), "certidao", "Matrícula do Imóvel.pdf", "application/pdf", KindCertificate)
	require.NoError(t, err)

	sum := sha256.Sum256(samplePDF)
	assert.Equal(t, hex.EncodeToString(sum[:]), saved.SHA256)
	assert.Equal(t, int64(len(samplePDF)), saved.Size)
	assert.Equal(t, "application/pdf", saved.Mimetype)
	assert.Nil(t, saved.Envelope)
	assert.True(t, strings.HasPrefix(saved.Ref, RefPrefix))
	assert.True(t, strings.HasSuffix(saved.Ref, "_Matr_cula_do_Im_vel.pdf"), saved.Ref)

	f, err := st.OpenPlain(saved.Ref)
	require.NoError(t, err)
	defer f.Close()
	got, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.Equal(t, samplePDF, got)
}

func TestSaveCertificateSniffsUndeclaredType(t *testing.T) {
	st := newTestStorage(t, false)
	saved, err := st.Save(bytes.NewReader(samplePDF), "certidao", "doc", "", KindCertificate)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", saved.Mimetype)
	assert.True(t, strings.HasSuffix(saved.Ref, ".pdf"))
}

func TestSaveCertificateAcceptsPDFExtension(t *testing.T) {
	st := newTestStorage(t, false)
	_, err := st.Save(strings.NewReader("not really a pdf"), "certidao", "scan.PDF", "application/x-whatever", KindCertificate)
	require.NoError(t, err)
}

func TestSaveCertificateAcceptsPDFVariantType(t *testing.T) {
	st := newTestStorage(t, false)
	saved, err := st.Save(bytes.NewReader(samplePDF), "certidao", "matricula", "application/x-pdf", KindCertificate)
	require.NoError(t, err)
	assert.Equal(t, "application/x-pdf", saved.Mimetype)
	assert.True(t, strings.HasSuffix(saved.Ref, "_matricula.pdf"), saved.Ref)
}

func TestSaveCertificateIgnoresClientExtension(t *testing.T) {
	st := newTestStorage(t, false)
	saved, err := st.Save(bytes.NewReader(samplePDF), "certidao", "matricula.exe", "application/pdf", KindCertificate)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(saved.Ref, "_matricula.pdf"), saved.Ref)
}

func TestSaveRejectsNonPDFCertificate(t *testing.T) {
	st := newTestStorage(t, false)
	_, err := st.Save(strings.NewReader("hello"), "certidao", "notes.txt", "text/plain", KindCertificate)
	require.True(t, errors.Is(err, ErrUnsupportedType))

	files, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestSavePhoto(t *testing.T) {
	st := newTestStorage(t, false)
	saved, err := st.Save(bytes.NewReader(samplePNG), "photos", "sala.png", "application/octet-stream", KindPhoto)
	require.NoError(t, err)
	assert.Equal(t, "image/png", saved.Mimetype)

	_, err = st.Save(strings.NewReader("#!/bin/sh"), "photos", "x.sh", "text/x-sh", KindPhoto)
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestSavePhotoExtensionFollowsType(t *testing.T) {
	st := newTestStorage(t, false)
	saved, err := st.Save(bytes.NewReader(samplePNG), "photos", "x.html", "image/png", KindPhoto)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(saved.Ref, "_x.png"), saved.Ref)
	assert.Equal(t, "/files/"+strings.TrimPrefix(saved.Ref, RefPrefix), PublicURL(saved.Ref))

	saved, err = st.Save(bytes.NewReader(samplePNG), "photos", "fachada.jpeg", "image/jpeg", KindPhoto)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(saved.Ref, "_fachada.jpg"), saved.Ref)

	saved, err = st.Save(bytes.NewReader(samplePNG), "photos", "planta", "image/x-unknown", KindPhoto)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(saved.Ref, "_planta"), saved.Ref)
}

func TestSaveCertificateEncryptedRoundTrip(t *testing.T) {
	st := newTestStorage(t, true)
	saved, err := st.Save(bytes.NewReader(samplePDF), "certidao", "c.pdf", "application/pdf", KindCertificate)
	require.NoError(t, err)
	require.NotNil(t, saved.Envelope)
	assert.Equal(t, AlgoAES256GCM, saved.Envelope.Algo)

	abs, err := st.Resolve(saved.Ref)
	require.NoError(t, err)
	raw, err := os.ReadFile(abs)
	require.NoError(t, err)
	assert.NotEqual(t, samplePDF, raw)
	assert.Len(t, raw, len(samplePDF))

	plain, err := st.ReadSealed(saved.Ref, *saved.Envelope)
	require.NoError(t, err)
	assert.Equal(t, samplePDF, plain)

	sum := sha256.Sum256(samplePDF)
	assert.Equal(t, hex.EncodeToString(sum[:]), saved.SHA256)
}

func TestReadSealedTamperedFails(t *testing.T) {
	st := newTestStorage(t, true)
	saved, err := st.Save(bytes.NewReader(samplePDF), "certidao", "c.pdf", "application/pdf", KindCertificate)
	require.NoError(t, err)

	abs, _ := st.Resolve(saved.Ref)
	raw, _ := os.ReadFile(abs)
	raw[0] ^= 0xff
	require.NoError(t, os.WriteFile(abs, raw, 0o640))

	_, err = st.ReadSealed(saved.Ref, *saved.Envelope)
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestReadSealedWithoutKey(t *testing.T) {
	st := newTestStorage(t, false)
	_, err := st.ReadSealed("uploads/x.pdf", Envelope{Algo: AlgoAES256GCM, IV: "00", Tag: "00"})
	require.ErrorIs(t, err, ErrNoKey)
}

func TestOpenRejectsUnsupportedAlgorithm(t *testing.T) {
	_, err := Open(testKey(), []byte("x"), Envelope{Algo: "aes-128-cbc", IV: "00", Tag: "00"})
	require.ErrorIs(t, err, ErrUnsupportedAlg)
}

func TestNewRequiresKeyForEncryption(t *testing.T) {
	_, err := New(t.TempDir(), nil, true, nil)
	require.ErrorIs(t, err, ErrNoKey)
}

func TestNormalizeRef(t *testing.T) {
	cases := map[string]string{
		"http://localhost:3000/files/123_a.jpg": "uploads/123_a.jpg",
		"/files/123_a.jpg":                      "uploads/123_a.jpg",
		`uploads\123_a.jpg`:                     "uploads/123_a.jpg",
		"/uploads/123_a.jpg":                    "uploads/123_a.jpg",
		"123_a.jpg":                             "uploads/123_a.jpg",
		"  ":                                    "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeRef(in), in)
	}
	assert.Equal(t, "/files/123_a.jpg", PublicURL("uploads/123_a.jpg"))
}

func TestResolveRejectsTraversal(t *testing.T) {
	st := newTestStorage(t, false)
	for _, ref := range []string{"uploads/../secret", "../../etc/passwd", "uploads/a/b.jpg", "uploads/"} {
		_, err := st.Resolve(ref)
		require.ErrorIs(t, err, ErrBadPath, ref)
	}
	abs, err := st.Resolve("uploads/ok.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(st.Dir(), "ok.jpg"), abs)
}

func TestRemoveAllIsBestEffort(t *testing.T) {
	st := newTestStorage(t, false)
	saved, err := st.Save(bytes.NewReader(samplePNG), "photos", "a.png", "image/png", KindPhoto)
	require.NoError(t, err)

	removed := st.RemoveAll([]string{saved.Ref, "uploads/missing.png", "../bad"})
	assert.Equal(t, 2, removed)

	files, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, files)
}
