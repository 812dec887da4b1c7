/*

Package treasury defines the interfaces and small building blocks shared by
all vault extensions: addresses and conditions, storage, authentication and
the context helpers used for logging.

Look into x/vault for the authorization engine guarding pooled funds and into
x/factory for the registry creating vault instances.

*/

package treasury
