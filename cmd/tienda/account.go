package main

import (
	"context"
	"flag"
	"fmt"
)

func (a *app) cmdRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *name == "" {
		*name = prompt("Name: ")
	}
	if *email == "" {
		*email = prompt("Email: ")
	}
	if *password == "" {
		*password = prompt("Password: ")
	}

	if err := a.accounts.Register(ctx, *name, *email, *password); err != nil {
		return err
	}
	fmt.Printf("Account created for %s. Check your inbox for the verification code,\n", *email)
	fmt.Println(`then run "tienda verify-code -email <email> -code <code>".`)
	return nil
}

func (a *app) cmdVerifyCode(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("verify-code", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	code := fs.String("code", "", "6-digit code from the verification email")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if err := a.accounts.VerifyRegistrationCode(ctx, *email, *code); err != nil {
		return err
	}
	fmt.Println("Email verified. You can sign in now.")
	return nil
}

func (a *app) cmdResendCode(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("resend-code", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if err := a.accounts.ResendVerificationCode(ctx, *email); err != nil {
		return err
	}
	fmt.Println("Verification code sent; check your inbox.")
	return nil
}

func (a *app) cmdVerifyEmail(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("verify-email", flag.ContinueOnError)
	token := fs.String("token", "", "token from the verification link")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if err := a.accounts.VerifyEmail(ctx, *token); err != nil {
		return err
	}
	fmt.Println("Email verified. You can sign in now.")
	return nil
}

func (a *app) cmdProfile(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	if err := a.requireAuth(); err != nil {
		return err
	}

	sub, rest := args[0], args[1:]
	switch sub {
	case "set-name":
		fs := flag.NewFlagSet("profile set-name", flag.ContinueOnError)
		name := fs.String("name", "", "new display name")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		if *name == "" {
			*name = prompt("New name: ")
		}
		if err := a.accounts.UpdateUsername(ctx, *name); err != nil {
			return err
		}
		fmt.Println("Name updated.")
		return nil
	case "set-phone":
		fs := flag.NewFlagSet("profile set-phone", flag.ContinueOnError)
		phone := fs.String("phone", "", "new phone number (7-15 digits)")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		if *phone == "" {
			*phone = prompt("New phone number: ")
		}
		if err := a.accounts.UpdatePhoneNumber(ctx, *phone); err != nil {
			return err
		}
		fmt.Println("Phone number updated.")
		return nil
	case "set-id":
		fs := flag.NewFlagSet("profile set-id", flag.ContinueOnError)
		id := fs.String("id", "", "new identification number")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		if *id == "" {
			*id = prompt("New identification number: ")
		}
		if err := a.accounts.UpdateIdentificationNumber(ctx, *id); err != nil {
			return err
		}
		fmt.Println("Identification number updated.")
		return nil
	default:
		return errUsage
	}
}

func (a *app) cmdForgotPassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("forgot-password", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if err := a.accounts.RequestPasswordReset(ctx, *email); err != nil {
		return err
	}
	fmt.Println("If that account exists, a reset link is on its way.")
	return nil
}

func (a *app) cmdResetPassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	token := fs.String("token", "", "token from the reset link")
	password := fs.String("password", "", "new password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *password == "" {
		*password = prompt("New password: ")
	}
	confirm := prompt("Repeat new password: ")

	if err := a.accounts.CompletePasswordReset(ctx, *token, *password, confirm); err != nil {
		return err
	}
	fmt.Println("Password updated. Sign in with the new one.")
	return nil
}
