package handlers

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"chatrelay/pkg/blob"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/utils"
)

// RegisterFiles registers the local blob endpoints. Only mounted when the
// local signer is configured; with S3 the client talks to the object store
// directly and these routes never exist.
func RegisterFiles(r *mux.Router) {
	r.HandleFunc("/files/{key:.+}", serveFile).Methods(http.MethodGet, http.MethodPut)
}

func localSigner() *blob.LocalSigner {
	if svc == nil {
		return nil
	}
	ls, _ := svc.Signer.(*blob.LocalSigner)
	return ls
}

// serveFile handles HMAC-signed reads and writes against the local blob
// directory. The signature covers method, key and expiry, so a read grant
// cannot be replayed as a write.
func serveFile(w http.ResponseWriter, r *http.Request) {
	ls := localSigner()
	if ls == nil {
		utils.JSONError(w, http.StatusNotFound, "not found")
		return
	}
	key := mux.Vars(r)["key"]
	q := r.URL.Query()
	if !ls.Verify(r.Method, key, q.Get("exp"), q.Get("sig")) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	path, ok := safeJoin(ls.Dir(), key)
	if !ok {
		utils.JSONError(w, http.StatusBadRequest, "invalid key")
		return
	}

	switch r.Method {
	case http.MethodPut:
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			utils.JSONError(w, http.StatusInternalServerError, "internal error")
			return
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
		if err != nil {
			utils.JSONError(w, http.StatusInternalServerError, "internal error")
			return
		}
		n, err := io.Copy(f, r.Body)
		cerr := f.Close()
		if err != nil || cerr != nil {
			utils.JSONError(w, http.StatusInternalServerError, "internal error")
			return
		}
		logger.Info("blob_stored", "key", key, "bytes", n)
		w.WriteHeader(http.StatusCreated)
	case http.MethodGet:
		http.ServeFile(w, r, path)
	}
}

// safeJoin joins key under root and rejects traversal outside it.
func safeJoin(root, key string) (string, bool) {
	p := filepath.Join(root, filepath.FromSlash(key))
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	pAbs, err := filepath.Abs(p)
	if err != nil {
		return "", false
	}
	if pAbs != rootAbs && !strings.HasPrefix(pAbs, rootAbs+string(os.PathSeparator)) {
		return "", false
	}
	return pAbs, true
}
