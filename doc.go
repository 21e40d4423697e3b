// Package activation drives the account activation lifecycle for newly
// registered users and for users changing their email address.
//
// Activation flow:
//   - BeforeCreate runs the conflict guard against both confirmed and pending
//     addresses, then parks the candidate address in PendingEmail so the
//     record is stored as Pending with no loginable email.
//   - AfterCreate and BeforeUpdate dispatch a templated email carrying a
//     signed activation link. Dispatch failures are logged and reported as
//     false; they never unwind a committed state change.
//   - Confirm decodes the link token, checks the claim shape, and moves the
//     user to Active, promoting PendingEmail to Email.
//
// Outcomes:
//   - The Activator returns an Outcome tagged as OK, Conflict, Validation,
//     Expired, StoreFailure, or DispatchFailure. ActivationController maps
//     outcomes to HTTP responses so the state machine stays transport free.
//
// Multiple outstanding links for the same user may coexist. The first one
// redeemed flips state; later redemptions find no pending email and are
// rejected as expired.
package activation
